// internal/exchange/listing.go
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

// TON pseudo-addresses used by StonFi pool listings to denote the
// native side of a pair.
const (
	TonAddress     = "EQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM9c"
	TonUSDTAddress = "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs"
)

// PoolListing is one TON-paired pool as an exchange reports it.
// Reserves are raw on-chain units: nanotons on the native side, token
// base units on the asset side.
type PoolListing struct {
	Address       string
	TokenAddress  string
	NativeReserve decimal.Decimal
	TokenReserve  decimal.Decimal
}

// ListingClient reads the full pool listing of one exchange.
type ListingClient interface {
	Dex() models.Dex
	FetchPools(ctx context.Context) ([]PoolListing, error)
}
