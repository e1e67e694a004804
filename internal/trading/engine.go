// internal/trading/engine.go

// Package trading walks every (token, active strategy) pair each cycle,
// evaluates the strategy against the latest pool snapshots and executes
// the resulting decisions.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/strategy"
)

// Engine dispatches evaluation jobs through a bounded worker pool.
type Engine struct {
	store     storage.Storage
	evaluator *strategy.Evaluator
	executor  *Executor
	workers   int
	logger    *zap.Logger
}

func NewEngine(store storage.Storage, evaluator *strategy.Evaluator, executor *Executor, workers int, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		evaluator: evaluator,
		executor:  executor,
		workers:   workers,
		logger:    logger.Named("engine"),
	}
}

// RunCycle evaluates every token against every active strategy. Job
// failures are logged per pair and never fail the cycle.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()

	tokens, err := e.store.ListTokens(ctx)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	strategies, err := e.store.ListActiveStrategies(ctx)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}

	e.logger.Debug("starting trading cycle",
		zap.Int("tokens", len(tokens)),
		zap.Int("strategies", len(strategies)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, token := range tokens {
		for _, strat := range strategies {
			g.Go(func() error {
				if err := e.evaluatePair(gctx, token, strat); err != nil {
					e.logger.Error("strategy evaluation failed",
						zap.Int64("token_id", token.ID),
						zap.Int64("strategy_id", strat.ID),
						zap.Error(err))
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	e.logger.Debug("trading cycle completed", zap.Duration("took", time.Since(start)))
	return nil
}

func (e *Engine) evaluatePair(ctx context.Context, token *models.Token, strat *models.Strategy) error {
	// One in-flight trade per (user, token, strategy). The guard holds
	// until the reconciler settles the pending transaction.
	pending, err := e.store.HasPendingTransaction(ctx, strat.UserID, token.ID, strat.ID)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}

	balance, err := e.store.TokenBalance(ctx, strat.UserID, token.ID)
	if err != nil {
		return err
	}

	lastPrice, err := e.store.LatestTransactionPrice(ctx, token.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	decision := e.evaluator.Evaluate(token.Snapshot(), strat.Logic, balance, lastPrice)
	switch decision.Type {
	case strategy.ActionBuy:
		e.logger.Info("strategy decided to buy",
			zap.Int64("user_id", strat.UserID),
			zap.Int64("strategy_id", strat.ID),
			zap.String("symbol", token.Symbol))
		return e.executor.ExecuteBuy(ctx, strat, token, decision.Amount)
	case strategy.ActionSell:
		e.logger.Info("strategy decided to sell",
			zap.Int64("user_id", strat.UserID),
			zap.Int64("strategy_id", strat.ID),
			zap.String("symbol", token.Symbol))
		return e.executor.ExecuteSell(ctx, strat, token, decision.Amount)
	default:
		return nil
	}
}
