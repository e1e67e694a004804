// internal/storage/models/token.go
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tontrade/jettonbot/internal/strategy"
)

// Token is a jetton discovered by the pool monitor. Address and decimal
// precision are immutable after creation; CreatedAt is the token's
// on-chain creation time, not the row insertion time.
type Token struct {
	ID              int64
	CreatedAt       time.Time
	RawAddress      string
	FriendlyAddress string
	Symbol          string
	Name            string
	Decimals        int32
	TotalSupply     decimal.Decimal // raw units
	Pools           []Pool
}

// TotalSupplyHuman returns the supply normalized by the token's decimals.
func (t *Token) TotalSupplyHuman() decimal.Decimal {
	return t.TotalSupply.Shift(-t.Decimals)
}

// Snapshot projects the token into the evaluator's read model.
func (t *Token) Snapshot() strategy.TokenSnapshot {
	snap := strategy.TokenSnapshot{
		Symbol:    t.Symbol,
		CreatedAt: t.CreatedAt,
		Pools:     make([]strategy.PoolSnapshot, 0, len(t.Pools)),
	}
	for _, p := range t.Pools {
		snap.Pools = append(snap.Pools, strategy.PoolSnapshot{
			Dex:          string(p.Dex),
			Address:      p.PoolAddress,
			PriceUSD:     p.PriceUSD,
			LiquidityUSD: p.TotalLiquidityUSD,
			MarketCapUSD: p.MarketCapUSD,
		})
	}
	return snap
}

// BestPool returns the token's pool with the highest fiat liquidity, or
// nil when the token has none.
func (t *Token) BestPool() *Pool {
	if len(t.Pools) == 0 {
		return nil
	}
	best := &t.Pools[0]
	for i := range t.Pools[1:] {
		if t.Pools[i+1].TotalLiquidityUSD.GreaterThan(best.TotalLiquidityUSD) {
			best = &t.Pools[i+1]
		}
	}
	return best
}
