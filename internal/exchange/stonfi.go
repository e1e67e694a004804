// internal/exchange/stonfi.go
package exchange

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

// StonFiClient reads the public StonFi pool listing.
type StonFiClient struct {
	baseURL    string
	httpClient *http.Client
	maxTries   uint
	logger     *zap.Logger
}

func NewStonFiClient(baseURL string, timeout time.Duration, maxTries int, logger *zap.Logger) *StonFiClient {
	return &StonFiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxTries:   uint(maxTries),
		logger:     logger.Named("stonfi"),
	}
}

func (c *StonFiClient) Dex() models.Dex { return models.DexStonFi }

type stonfiPool struct {
	Address       string `json:"address"`
	Token0Address string `json:"token0_address"`
	Token1Address string `json:"token1_address"`
	Reserve0      string `json:"reserve0"`
	Reserve1      string `json:"reserve1"`
}

func isNativeSide(address string) bool {
	return address == TonAddress || address == TonUSDTAddress
}

// FetchPools lists all pools with a native (TON or its pTON wrapper)
// side. Pairs between two jettons are skipped.
func (c *StonFiClient) FetchPools(ctx context.Context) ([]PoolListing, error) {
	var out struct {
		PoolList []stonfiPool `json:"pool_list"`
	}
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/v1/pools", c.maxTries, c.logger, &out); err != nil {
		return nil, err
	}

	listings := make([]PoolListing, 0, len(out.PoolList))
	for _, pool := range out.PoolList {
		var tokenAddress, nativeReserve, tokenReserve string
		switch {
		case isNativeSide(pool.Token0Address):
			tokenAddress = pool.Token1Address
			nativeReserve, tokenReserve = pool.Reserve0, pool.Reserve1
		case isNativeSide(pool.Token1Address):
			tokenAddress = pool.Token0Address
			nativeReserve, tokenReserve = pool.Reserve1, pool.Reserve0
		default:
			continue
		}

		native, err := decimal.NewFromString(nativeReserve)
		if err != nil {
			c.logger.Debug("skipping pool with bad native reserve",
				zap.String("pool", pool.Address), zap.Error(err))
			continue
		}
		token, err := decimal.NewFromString(tokenReserve)
		if err != nil {
			c.logger.Debug("skipping pool with bad token reserve",
				zap.String("pool", pool.Address), zap.Error(err))
			continue
		}

		listings = append(listings, PoolListing{
			Address:       pool.Address,
			TokenAddress:  tokenAddress,
			NativeReserve: native,
			TokenReserve:  token,
		})
	}
	return listings, nil
}
