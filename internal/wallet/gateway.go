// internal/wallet/gateway.go
package wallet

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

// WithdrawRequest moves native TON out of a user wallet. FeeTransfer
// requests send the full amount; regular withdrawals deduct the
// transfer gas from it.
type WithdrawRequest struct {
	UserID      int64
	FromAddress string
	ToAddress   string
	AmountTon   decimal.Decimal // human TON units
	FeeTransfer bool
}

// SwapRequest submits one swap through a user wallet. OfferAmount is
// TON for a buy and tokens for a sell, both in human units.
type SwapRequest struct {
	UserID        int64
	WalletAddress string
	Dex           models.Dex
	Side          models.TxType
	TokenAddress  string
	PoolAddress   string
	OfferAmount   decimal.Decimal
	MinAskAmount  decimal.Decimal
	GasAmount     decimal.Decimal
}

// Gateway is the wallet capability the trading core sees. Key custody
// and message signing live behind it; callers only reference addresses.
type Gateway interface {
	// TonWallet returns the user's TON wallet.
	TonWallet(ctx context.Context, userID int64) (models.Wallet, error)
	// Balance reads an address's native balance in human TON units.
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	// Withdraw transfers native TON. Amounts at or below the transfer
	// gas are silently dropped.
	Withdraw(ctx context.Context, req WithdrawRequest) error
	// SubmitSwap sends a swap for signing and broadcast. Single
	// attempt: a duplicate submission would double-spend.
	SubmitSwap(ctx context.Context, req SwapRequest) error
}
