// internal/storage/models/pool.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dex identifies an exchange.
type Dex string

const (
	DexDeDust Dex = "dedust"
	DexStonFi Dex = "stonfi"
)

// Pool is a per-(token, exchange) liquidity snapshot. All derived values
// are recomputed wholesale each monitoring cycle; rows are upserted on
// (token_id, dex) and never deleted.
type Pool struct {
	ID                int64
	TokenID           int64
	Dex               Dex
	PoolAddress       string
	NativeLiquidity   decimal.Decimal // human TON units
	AssetLiquidity    decimal.Decimal // human token units
	TotalLiquidityUSD decimal.Decimal
	PriceTon          decimal.Decimal
	PriceUSD          decimal.Decimal
	MarketCapUSD      decimal.Decimal
	UpdatedAt         time.Time
}
