// internal/exchange/dedust.go
package exchange

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

// DeDustClient reads the public DeDust pool listing.
type DeDustClient struct {
	baseURL    string
	httpClient *http.Client
	maxTries   uint
	logger     *zap.Logger
}

func NewDeDustClient(baseURL string, timeout time.Duration, maxTries int, logger *zap.Logger) *DeDustClient {
	return &DeDustClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxTries:   uint(maxTries),
		logger:     logger.Named("dedust"),
	}
}

func (c *DeDustClient) Dex() models.Dex { return models.DexDeDust }

type dedustAsset struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

type dedustPool struct {
	Address  string        `json:"address"`
	Assets   []dedustAsset `json:"assets"`
	Reserves []string      `json:"reserves"`
}

// FetchPools lists all TON-paired jetton pools. Pools whose pair is not
// exactly native-vs-jetton are skipped.
func (c *DeDustClient) FetchPools(ctx context.Context) ([]PoolListing, error) {
	var pools []dedustPool
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/v2/pools", c.maxTries, c.logger, &pools); err != nil {
		return nil, err
	}

	listings := make([]PoolListing, 0, len(pools))
	for _, pool := range pools {
		if len(pool.Assets) != 2 || len(pool.Reserves) != 2 {
			continue
		}
		nativeIdx, jettonIdx := -1, -1
		for i, asset := range pool.Assets {
			switch asset.Type {
			case "native":
				nativeIdx = i
			case "jetton":
				jettonIdx = i
			}
		}
		if nativeIdx < 0 || jettonIdx < 0 {
			continue
		}

		nativeReserve, err := decimal.NewFromString(pool.Reserves[nativeIdx])
		if err != nil {
			c.logger.Debug("skipping pool with bad native reserve",
				zap.String("pool", pool.Address), zap.Error(err))
			continue
		}
		tokenReserve, err := decimal.NewFromString(pool.Reserves[jettonIdx])
		if err != nil {
			c.logger.Debug("skipping pool with bad token reserve",
				zap.String("pool", pool.Address), zap.Error(err))
			continue
		}

		listings = append(listings, PoolListing{
			Address:       pool.Address,
			TokenAddress:  pool.Assets[jettonIdx].Address,
			NativeReserve: nativeReserve,
			TokenReserve:  tokenReserve,
		})
	}
	return listings, nil
}
