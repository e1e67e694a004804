// internal/monitor/snapshot.go
package monitor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

// tonDecimals is the scale of native TON amounts.
const tonDecimals = 9

// Rounding scales, matching what downstream consumers display.
const (
	priceTonScale = 9
	priceUSDScale = 6
	usdScale      = 2
)

// SnapshotInput is the raw material for one pool snapshot. Reserves and
// supply are raw on-chain units.
type SnapshotInput struct {
	TokenID       int64
	PoolAddress   string
	Dex           models.Dex
	NativeReserve decimal.Decimal // nanotons
	TokenReserve  decimal.Decimal // token base units
	TokenDecimals int32
	TotalSupply   decimal.Decimal // token base units
	TonPriceUSD   decimal.Decimal
}

// ComputeSnapshot derives the stored pool metrics from raw reserves.
// Prices come from human-unit reserves; liquidity doubles the native
// side; market cap prices the full supply.
func ComputeSnapshot(in SnapshotInput) (models.Pool, error) {
	if in.TokenReserve.IsZero() {
		return models.Pool{}, fmt.Errorf("pool %s has empty token reserve", in.PoolAddress)
	}
	if in.TonPriceUSD.IsZero() {
		return models.Pool{}, fmt.Errorf("TON/USD price is not set")
	}

	humanNative := in.NativeReserve.Shift(-tonDecimals)
	humanToken := in.TokenReserve.Shift(-in.TokenDecimals)
	humanSupply := in.TotalSupply.Shift(-in.TokenDecimals)

	priceTon := humanNative.Div(humanToken)
	priceUSD := priceTon.Mul(in.TonPriceUSD)
	liquidityUSD := humanNative.Mul(in.TonPriceUSD).Mul(decimal.NewFromInt(2))
	marketCapUSD := priceUSD.Mul(humanSupply)

	return models.Pool{
		TokenID:           in.TokenID,
		Dex:               in.Dex,
		PoolAddress:       in.PoolAddress,
		NativeLiquidity:   humanNative.Round(tonDecimals),
		AssetLiquidity:    humanToken.Round(in.TokenDecimals),
		TotalLiquidityUSD: liquidityUSD.Round(usdScale),
		PriceTon:          priceTon.Round(priceTonScale),
		PriceUSD:          priceUSD.Round(priceUSDScale),
		MarketCapUSD:      marketCapUSD.Round(usdScale),
	}, nil
}
