// internal/trading/executor.go
package trading

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/exchange"
	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/wallet"
)

// sellAmountScale rounds sell amounts down so a trade never offers
// more than the recorded balance.
const sellAmountScale = 9

// ChainReader is the slice of tonapi the executor needs.
type ChainReader interface {
	JettonBalance(ctx context.Context, owner, jetton string) (decimal.Decimal, error)
}

// ExecutorConfig carries the trade economics.
type ExecutorConfig struct {
	FeePercentage decimal.Decimal // e.g. 0.01 for 1%
	FeeRecipient  string
	SwapGas       decimal.Decimal // TON attached to a swap
	TransferGas   decimal.Decimal // TON cost of a plain transfer
}

// Executor turns evaluator decisions into submitted swaps and pending
// transaction records.
type Executor struct {
	store    storage.Storage
	gateway  wallet.Gateway
	chain    ChainReader
	swappers map[models.Dex]exchange.Swapper
	cfg      ExecutorConfig
	logger   *zap.Logger

	feeTransfers sync.WaitGroup
}

func NewExecutor(store storage.Storage, gateway wallet.Gateway, chain ChainReader, swappers []exchange.Swapper, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	byDex := make(map[models.Dex]exchange.Swapper, len(swappers))
	for _, s := range swappers {
		byDex[s.Dex()] = s
	}
	return &Executor{
		store:    store,
		gateway:  gateway,
		chain:    chain,
		swappers: byDex,
		cfg:      cfg,
		logger:   logger.Named("executor"),
	}
}

// Wait blocks until in-flight fee transfers finish. Called on shutdown.
func (e *Executor) Wait() {
	e.feeTransfers.Wait()
}

// ExecuteBuy spends amountTon of a strategy's budget on a token. The
// exposure and wallet guards can veto the trade; a veto is not an error.
func (e *Executor) ExecuteBuy(ctx context.Context, strat *models.Strategy, token *models.Token, amountTon decimal.Decimal) error {
	pool := token.BestPool()
	if pool == nil || pool.PriceUSD.IsZero() {
		return fmt.Errorf("no priced pool for token %s", token.Symbol)
	}
	swapper, ok := e.swappers[pool.Dex]
	if !ok {
		return fmt.Errorf("no swapper for dex %s", pool.Dex)
	}

	totalCost := amountTon.Add(e.cfg.SwapGas)

	netInvestment, err := e.store.NetInvestment(ctx, strat.ID)
	if err != nil {
		return err
	}
	pendingInvestment, err := e.store.PendingInvestment(ctx, strat.ID)
	if err != nil {
		return err
	}
	available := decimal.Max(strat.MaxBetAmount.Sub(netInvestment).Sub(pendingInvestment), decimal.Zero)
	if totalCost.GreaterThan(available) {
		e.logger.Warn("buy exceeds available strategy budget",
			zap.Int64("strategy_id", strat.ID),
			zap.String("total_cost", totalCost.String()),
			zap.String("available", available.String()))
		return nil
	}

	userWallet, err := e.gateway.TonWallet(ctx, strat.UserID)
	if err != nil {
		return err
	}
	walletBalance, err := e.gateway.Balance(ctx, userWallet.Address)
	if err != nil {
		return err
	}
	if totalCost.GreaterThan(walletBalance) {
		e.logger.Warn("insufficient wallet funds for buy",
			zap.Int64("user_id", strat.UserID),
			zap.String("total_cost", totalCost.String()),
			zap.String("wallet_balance", walletBalance.String()))
		return nil
	}

	fee := amountTon.Mul(e.cfg.FeePercentage)
	amountAfterFee := amountTon.Sub(fee)

	e.logger.Info("buying token",
		zap.Int64("user_id", strat.UserID),
		zap.Int64("strategy_id", strat.ID),
		zap.String("symbol", token.Symbol),
		zap.String("amount_ton", amountAfterFee.String()),
		zap.String("dex", string(pool.Dex)))

	if err := swapper.Buy(ctx, strat.UserID, token.FriendlyAddress, pool.PoolAddress, amountAfterFee); err != nil {
		return fmt.Errorf("submit buy: %w", err)
	}

	tx := &models.Transaction{
		TokenID:    token.ID,
		StrategyID: strat.ID,
		UserID:     strat.UserID,
		Type:       models.TxBuy,
		// Token amount is unknown until the reconciler matches the swap.
		AmountToken: decimal.Zero,
		AmountTon:   amountAfterFee,
		PriceUSD:    pool.PriceUSD,
		Dex:         pool.Dex,
		Status:      models.TxPending,
	}
	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("record pending buy: %w", err)
	}

	e.transferFeeAsync(ctx, strat.UserID, fee, tx.ID)
	return nil
}

// ExecuteSell offers amountToken of the user's holding. The proceeds
// side is an estimate from the current pool price; the reconciler
// replaces it with the realized amount.
func (e *Executor) ExecuteSell(ctx context.Context, strat *models.Strategy, token *models.Token, amountToken decimal.Decimal) error {
	pool := token.BestPool()
	if pool == nil || pool.PriceUSD.IsZero() {
		return fmt.Errorf("no priced pool for token %s", token.Symbol)
	}
	swapper, ok := e.swappers[pool.Dex]
	if !ok {
		return fmt.Errorf("no swapper for dex %s", pool.Dex)
	}

	amountToken = amountToken.RoundDown(sellAmountScale)
	if !amountToken.IsPositive() {
		e.logger.Warn("calculated sell amount is zero",
			zap.Int64("strategy_id", strat.ID),
			zap.String("symbol", token.Symbol))
		return nil
	}

	userWallet, err := e.gateway.TonWallet(ctx, strat.UserID)
	if err != nil {
		return err
	}
	walletBalance, err := e.gateway.Balance(ctx, userWallet.Address)
	if err != nil {
		return err
	}
	if walletBalance.LessThan(e.cfg.SwapGas) {
		e.logger.Warn("insufficient TON to cover swap gas, skipping sell",
			zap.Int64("user_id", strat.UserID),
			zap.String("wallet_balance", walletBalance.String()))
		return nil
	}

	// The recorded balance can run ahead of the chain while a prior
	// trade settles, so never offer more than the wallet actually holds.
	rawOnchain, err := e.chain.JettonBalance(ctx, userWallet.Address, token.FriendlyAddress)
	if err != nil {
		return fmt.Errorf("check on-chain token balance: %w", err)
	}
	onchain := rawOnchain.Shift(-token.Decimals)
	if onchain.LessThan(amountToken) {
		e.logger.Warn("on-chain balance below recorded holding, clamping sell",
			zap.Int64("user_id", strat.UserID),
			zap.String("symbol", token.Symbol),
			zap.String("recorded", amountToken.String()),
			zap.String("onchain", onchain.String()))
		amountToken = onchain.RoundDown(sellAmountScale)
		if !amountToken.IsPositive() {
			return nil
		}
	}

	estimatedTon := amountToken.Mul(pool.PriceUSD)

	e.logger.Info("selling token",
		zap.Int64("user_id", strat.UserID),
		zap.Int64("strategy_id", strat.ID),
		zap.String("symbol", token.Symbol),
		zap.String("amount_token", amountToken.String()),
		zap.String("dex", string(pool.Dex)))

	if err := swapper.Sell(ctx, strat.UserID, token.FriendlyAddress, pool.PoolAddress, amountToken); err != nil {
		return fmt.Errorf("submit sell: %w", err)
	}

	tx := &models.Transaction{
		TokenID:     token.ID,
		StrategyID:  strat.ID,
		UserID:      strat.UserID,
		Type:        models.TxSell,
		AmountToken: amountToken,
		AmountTon:   estimatedTon,
		PriceUSD:    pool.PriceUSD,
		Dex:         pool.Dex,
		Status:      models.TxPending,
	}
	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("record pending sell: %w", err)
	}

	fee := estimatedTon.Mul(e.cfg.FeePercentage)
	e.transferFeeAsync(ctx, strat.UserID, fee, tx.ID)
	return nil
}

// transferFeeAsync moves the platform fee to the recipient wallet off
// the trade path. The Fee row is recorded whether or not the transfer
// lands; a failed transfer is logged and reconciled out of band.
func (e *Executor) transferFeeAsync(ctx context.Context, userID int64, fee decimal.Decimal, transactionID int64) {
	fee = fee.Round(sellAmountScale)
	bgCtx := context.WithoutCancel(ctx)

	e.feeTransfers.Add(1)
	go func() {
		defer e.feeTransfers.Done()

		amount := fee
		if fee.GreaterThan(e.cfg.TransferGas) {
			userWallet, err := e.gateway.TonWallet(bgCtx, userID)
			if err != nil {
				e.logger.Error("fee transfer: wallet lookup failed",
					zap.Int64("user_id", userID), zap.Error(err))
				return
			}
			err = e.gateway.Withdraw(bgCtx, wallet.WithdrawRequest{
				UserID:      userID,
				FromAddress: userWallet.Address,
				ToAddress:   e.cfg.FeeRecipient,
				AmountTon:   fee,
				FeeTransfer: true,
			})
			if err != nil {
				e.logger.Error("fee transfer failed",
					zap.Int64("user_id", userID),
					zap.Int64("transaction_id", transactionID),
					zap.String("fee_ton", fee.String()),
					zap.Error(err))
			}
		} else {
			// Fee below the gas cost: keep the row for accounting,
			// charge nothing.
			amount = decimal.Zero
		}

		feeRow := &models.Fee{
			UserID:        userID,
			AmountTon:     amount,
			TransactionID: transactionID,
		}
		if err := e.store.CreateFee(bgCtx, feeRow); err != nil {
			e.logger.Error("failed to record fee",
				zap.Int64("transaction_id", transactionID), zap.Error(err))
		}
	}()
}
