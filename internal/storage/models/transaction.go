// internal/storage/models/transaction.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the trade direction.
type TxType string

const (
	TxBuy  TxType = "buy"
	TxSell TxType = "sell"
)

// TxStatus is the transaction settlement state. Pending is the only
// non-terminal state; success and failed are final.
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxSuccess TxStatus = "success"
	TxFailed  TxStatus = "failed"
)

// Transaction records one attempted swap. Created by the trade executor
// in pending state; moved to a terminal state only by the reconciler.
// For a pending buy AmountToken is zero until confirmation; for a
// pending sell AmountTon holds the pre-trade estimate.
type Transaction struct {
	ID          int64
	CreatedAt   time.Time
	TokenID     int64
	StrategyID  int64
	UserID      int64
	Type        TxType
	AmountToken decimal.Decimal // human token units
	AmountTon   decimal.Decimal // human TON units
	PriceUSD    decimal.Decimal // fiat price at attempt time
	Dex         Dex
	Status      TxStatus
	OnchainID   string // on-chain event id, empty until matched
}

// Fee records the platform fee charged for one transaction, at most one
// row per transaction.
type Fee struct {
	ID            int64
	CreatedAt     time.Time
	UserID        int64
	AmountTon     decimal.Decimal
	TransactionID int64
}

// TokenBalance is the per-(user, token) holding, updated only by the
// reconciler when a transaction reaches success.
type TokenBalance struct {
	ID        int64
	UserID    int64
	TokenID   int64
	Balance   decimal.Decimal // human token units
	UpdatedAt time.Time
}

// Wallet is a user's on-chain wallet reference. Key custody lives in the
// external signer; only the address is stored here.
type Wallet struct {
	ID         int64
	UserID     int64
	Blockchain string
	Address    string
	CreatedAt  time.Time
}

// BlockchainTon is the only chain this bot trades on.
const BlockchainTon = "ton"
