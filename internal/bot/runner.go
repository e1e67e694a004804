// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tontrade/jettonbot/internal/config"
	"github.com/tontrade/jettonbot/internal/exchange"
	"github.com/tontrade/jettonbot/internal/logger"
	"github.com/tontrade/jettonbot/internal/monitor"
	"github.com/tontrade/jettonbot/internal/reconciler"
	"github.com/tontrade/jettonbot/internal/scheduler"
	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/storage/postgres"
	"github.com/tontrade/jettonbot/internal/strategy"
	"github.com/tontrade/jettonbot/internal/tonapi"
	"github.com/tontrade/jettonbot/internal/trading"
	"github.com/tontrade/jettonbot/internal/wallet"
)

// Runner wires the storage, chain clients and the three trading loops
// together and drives them until shutdown.
type Runner struct {
	cfg *config.Config
	log *logger.Logger
}

func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Run blocks until SIGINT/SIGTERM or a fatal startup error.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	swapGas, err := decimal.NewFromString(r.cfg.SwapGasTon)
	if err != nil {
		return fmt.Errorf("invalid swap_gas_ton: %w", err)
	}
	transferGas, err := decimal.NewFromString(r.cfg.TransferGasTon)
	if err != nil {
		return fmt.Errorf("invalid transfer_gas_ton: %w", err)
	}

	store, err := postgres.NewStorage(ctx, r.cfg.PostgresURL, r.log.WithComponent("storage"))
	if err != nil {
		return fmt.Errorf("connect to storage: %w", err)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	chain := tonapi.NewClient(r.cfg.TonAPIURL, r.cfg.TonAPIKey,
		r.cfg.UpstreamTimeout(), r.cfg.Retries, r.log.WithComponent("tonapi"))

	signer := wallet.NewSignerClient(r.cfg.SignerURL, r.cfg.UpstreamTimeout())
	gateway := wallet.NewService(store, chain, signer, transferGas, r.log.WithComponent("wallet"))

	if err := r.seedStrategies(ctx, store); err != nil {
		return err
	}

	listingClients := []exchange.ListingClient{
		exchange.NewBreaker(
			exchange.NewDeDustClient(r.cfg.DeDustURL, r.cfg.UpstreamTimeout(), r.cfg.Retries, r.log.WithComponent("exchange")),
			r.cfg.ListingFailureCap, r.log.WithComponent("exchange")),
		exchange.NewBreaker(
			exchange.NewStonFiClient(r.cfg.StonFiURL, r.cfg.UpstreamTimeout(), r.cfg.Retries, r.log.WithComponent("exchange")),
			r.cfg.ListingFailureCap, r.log.WithComponent("exchange")),
	}

	poolMonitor := monitor.New(store, chain, listingClients, r.log.WithComponent("monitor"))
	if err := poolMonitor.Warmup(ctx); err != nil {
		return fmt.Errorf("monitor warmup: %w", err)
	}

	evaluator := strategy.NewEvaluator(r.cfg.SymbolBlacklist, r.log.WithComponent("evaluator"))
	swappers := []exchange.Swapper{
		exchange.NewDeDustSwapper(gateway, swapGas, r.log.WithComponent("swap")),
		exchange.NewStonFiSwapper(gateway, swapGas, r.log.WithComponent("swap")),
	}
	executor := trading.NewExecutor(store, gateway, chain, swappers, trading.ExecutorConfig{
		FeePercentage: decimal.NewFromFloat(r.cfg.FeePercentage),
		FeeRecipient:  r.cfg.FeeRecipientWallet,
		SwapGas:       swapGas,
		TransferGas:   transferGas,
	}, r.log.WithComponent("trading"))
	engine := trading.NewEngine(store, evaluator, executor, r.cfg.Workers, r.log.WithComponent("trading"))

	settler := reconciler.New(store, chain, gateway, swapGas,
		r.cfg.PendingTimeout(), r.log.WithComponent("reconciler"))

	r.log.Info("bot started",
		zap.Duration("monitor_interval", r.cfg.MonitorTick()),
		zap.Duration("trading_interval", r.cfg.TradingTick()),
		zap.Duration("reconcile_interval", r.cfg.ReconcileTick()),
		zap.Int("workers", r.cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.NewLoop("monitor", r.cfg.MonitorTick(), poolMonitor.RunCycle, r.log).Run(gctx)
	})
	g.Go(func() error {
		return scheduler.NewLoop("trading", r.cfg.TradingTick(), engine.RunCycle, r.log).Run(gctx)
	})
	g.Go(func() error {
		return scheduler.NewLoop("reconciler", r.cfg.ReconcileTick(), settler.RunCycle, r.log).Run(gctx)
	})

	err = g.Wait()

	// Let in-flight fee transfers land before the pool closes.
	executor.Wait()

	if errors.Is(err, context.Canceled) {
		r.log.Info("bot shut down")
		return nil
	}
	return err
}

// seedStrategies upserts the strategies YAML file into storage. The
// file replaces an admin surface: operators describe each user's rules
// there and restart the bot to apply them.
func (r *Runner) seedStrategies(ctx context.Context, store storage.Storage) error {
	if r.cfg.StrategiesFile == "" {
		r.log.Info("no strategies file configured, using stored strategies")
		return nil
	}

	loader := strategy.NewLoader(r.log.WithComponent("strategies"))
	seeds, err := loader.LoadSeeds(r.cfg.StrategiesFile)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}

	for _, seed := range seeds {
		s := &models.Strategy{
			UserID:       seed.UserID,
			Name:         seed.Name,
			IsActive:     seed.IsActive,
			Logic:        seed.Logic,
			MaxBetAmount: seed.MaxBetAmount,
		}
		if err := store.UpsertStrategy(ctx, s); err != nil {
			return fmt.Errorf("upsert strategy %q for user %d: %w", seed.Name, seed.UserID, err)
		}
	}
	r.log.Info("strategies seeded", zap.Int("count", len(seeds)))
	return nil
}
