// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage is the persistence boundary for the trading core.
type Storage interface {
	// Tokens
	CreateToken(ctx context.Context, token *models.Token) error
	TokenByID(ctx context.Context, id int64) (*models.Token, error)
	ListTokens(ctx context.Context) ([]*models.Token, error)

	// Pools
	UpsertPool(ctx context.Context, pool *models.Pool) error

	// Strategies
	UpsertStrategy(ctx context.Context, s *models.Strategy) error
	StrategyByID(ctx context.Context, id int64) (*models.Strategy, error)
	ListActiveStrategies(ctx context.Context) ([]*models.Strategy, error)

	// Transactions
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	PendingTransactions(ctx context.Context) ([]*models.Transaction, error)
	HasPendingTransaction(ctx context.Context, userID, tokenID, strategyID int64) (bool, error)
	LatestTransactionPrice(ctx context.Context, tokenID int64) (decimal.Decimal, error)
	NetInvestment(ctx context.Context, strategyID int64) (decimal.Decimal, error)
	PendingInvestment(ctx context.Context, strategyID int64) (decimal.Decimal, error)
	StrategyPNL(ctx context.Context, strategyID int64) (decimal.Decimal, error)
	// MarkTransactionSuccess records the realized amount for the side
	// that was unknown at submission time. The update is keyed by id and
	// guarded on pending status, so a terminal transaction is never
	// rewritten.
	MarkTransactionSuccess(ctx context.Context, id int64, realizedAmount decimal.Decimal, side models.TxType, onchainID string) error
	MarkTransactionFailed(ctx context.Context, id int64, onchainID string) error

	// Fees
	CreateFee(ctx context.Context, fee *models.Fee) error

	// Balances
	TokenBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error)
	ApplyBalanceDelta(ctx context.Context, userID, tokenID int64, delta decimal.Decimal) error

	// Wallets
	UserWallets(ctx context.Context, userID int64) ([]models.Wallet, error)

	// Migrations
	RunMigrations(ctx context.Context) error
	Close()
}
