// internal/reconciler/reconciler.go

// Package reconciler settles pending transactions against on-chain
// wallet events. It is the only writer of terminal transaction states
// and of token balances.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/tonapi"
)

// eventScanLimit is how many recent wallet events one check inspects.
const eventScanLimit = 30

// tonDecimals is the scale of native amounts in swap events.
const tonDecimals = 9

// checkConcurrency bounds parallel wallet event fetches per cycle.
const checkConcurrency = 8

// ChainReader is the slice of tonapi the reconciler needs.
type ChainReader interface {
	AccountEvents(ctx context.Context, address string, limit int) ([]tonapi.Event, error)
}

// WalletResolver maps a user to their TON wallet.
type WalletResolver interface {
	TonWallet(ctx context.Context, userID int64) (models.Wallet, error)
}

// Reconciler drives the settlement cycle.
type Reconciler struct {
	store          storage.Storage
	chain          ChainReader
	wallets        WalletResolver
	swapGas        decimal.Decimal
	pendingTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func New(store storage.Storage, chain ChainReader, wallets WalletResolver, swapGas decimal.Decimal, pendingTimeout time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:          store,
		chain:          chain,
		wallets:        wallets,
		swapGas:        swapGas,
		pendingTimeout: pendingTimeout,
		logger:         logger.Named("reconciler"),
		now:            time.Now,
	}
}

// RunCycle checks every pending transaction once. Per-transaction
// failures are logged and retried on the next cycle.
func (r *Reconciler) RunCycle(ctx context.Context) error {
	pending, err := r.store.PendingTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(checkConcurrency)
	for _, tx := range pending {
		g.Go(func() error {
			if err := r.checkTransaction(gctx, tx); err != nil {
				r.logger.Error("failed to check transaction",
					zap.Int64("transaction_id", tx.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Reconciler) checkTransaction(ctx context.Context, tx *models.Transaction) error {
	if r.now().Sub(tx.CreatedAt) >= r.pendingTimeout {
		r.logger.Warn("transaction timed out, marking as failed",
			zap.Int64("transaction_id", tx.ID),
			zap.Time("created_at", tx.CreatedAt))
		return r.markFailed(ctx, tx, "")
	}

	token, err := r.store.TokenByID(ctx, tx.TokenID)
	if err != nil {
		return fmt.Errorf("load token %d: %w", tx.TokenID, err)
	}
	userWallet, err := r.wallets.TonWallet(ctx, tx.UserID)
	if err != nil {
		return fmt.Errorf("resolve wallet for user %d: %w", tx.UserID, err)
	}

	events, err := r.chain.AccountEvents(ctx, userWallet.Address, eventScanLimit)
	if err != nil {
		return fmt.Errorf("fetch wallet events: %w", err)
	}

	match := r.findMatch(events, tx, token)
	if match == nil {
		// Swap not visible on chain yet; next cycle retries.
		return nil
	}

	if match.action.Status != tonapi.ActionStatusOK {
		r.logger.Warn("swap failed on chain",
			zap.Int64("transaction_id", tx.ID),
			zap.String("event_id", match.eventID))
		return r.markFailed(ctx, tx, match.eventID)
	}
	return r.settle(ctx, tx, token, match)
}

type swapMatch struct {
	eventID string
	action  tonapi.Action
	swap    *tonapi.JettonSwapAction
}

// findMatch scans wallet events for the JettonSwap this transaction
// produced. Buys match on the exact nanoton input plus the token master
// on the receiving side; sells match on the exact raw token input plus
// the master on the sending side.
func (r *Reconciler) findMatch(events []tonapi.Event, tx *models.Transaction, token *models.Token) *swapMatch {
	for _, event := range events {
		for _, action := range event.Actions {
			if action.Type != tonapi.ActionJettonSwap || action.JettonSwap == nil {
				continue
			}
			swap := action.JettonSwap

			if tx.Type == models.TxBuy {
				expected := tx.AmountTon.Add(r.swapGas).Shift(tonDecimals).Round(0)
				if decimal.NewFromInt(swap.TonIn).Equal(expected) &&
					swap.JettonMasterOut != nil &&
					swap.JettonMasterOut.Address == token.RawAddress {
					return &swapMatch{eventID: event.EventID, action: action, swap: swap}
				}
				continue
			}

			if swap.AmountIn == "" {
				continue
			}
			amountIn, err := decimal.NewFromString(swap.AmountIn)
			if err != nil {
				continue
			}
			expected := tx.AmountToken.Shift(token.Decimals).Round(0)
			if amountIn.Equal(expected) &&
				swap.JettonMasterIn != nil &&
				swap.JettonMasterIn.Address == token.RawAddress {
				return &swapMatch{eventID: event.EventID, action: action, swap: swap}
			}
		}
	}
	return nil
}

// settle records the realized amount and moves the balance. The status
// update is guarded on pending, so a racing cycle settles at most once;
// the loser sees ErrNotFound and leaves the balance alone.
func (r *Reconciler) settle(ctx context.Context, tx *models.Transaction, token *models.Token, match *swapMatch) error {
	var realized, balanceDelta decimal.Decimal
	if tx.Type == models.TxBuy {
		amountOut, err := decimal.NewFromString(match.swap.AmountOut)
		if err != nil {
			return fmt.Errorf("parse swap amount_out %q: %w", match.swap.AmountOut, err)
		}
		realized = amountOut.Shift(-token.Decimals)
		balanceDelta = realized
	} else {
		realized = decimal.NewFromInt(match.swap.TonOut).Shift(-tonDecimals)
		balanceDelta = tx.AmountToken.Neg()
	}

	err := r.store.MarkTransactionSuccess(ctx, tx.ID, realized, tx.Type, match.eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark transaction success: %w", err)
	}

	if err := r.store.ApplyBalanceDelta(ctx, tx.UserID, tx.TokenID, balanceDelta); err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}

	r.logger.Info("transaction settled",
		zap.Int64("transaction_id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.String("symbol", token.Symbol),
		zap.String("realized", realized.String()),
		zap.String("event_id", match.eventID))

	if tx.Type == models.TxSell {
		strat, err := r.store.StrategyByID(ctx, tx.StrategyID)
		if err != nil {
			r.logger.Warn("failed to load strategy for PNL report",
				zap.Int64("strategy_id", tx.StrategyID), zap.Error(err))
			return nil
		}
		pnl, err := r.store.StrategyPNL(ctx, strat.ID)
		if err != nil {
			r.logger.Warn("failed to compute strategy PNL",
				zap.Int64("strategy_id", strat.ID), zap.Error(err))
			return nil
		}
		r.logger.Info("strategy realized PNL",
			zap.Int64("strategy_id", strat.ID),
			zap.String("strategy", strat.Name),
			zap.String("pnl_ton", pnl.String()))
	}
	return nil
}

func (r *Reconciler) markFailed(ctx context.Context, tx *models.Transaction, eventID string) error {
	if err := r.store.MarkTransactionFailed(ctx, tx.ID, eventID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark transaction failed: %w", err)
	}
	return nil
}
