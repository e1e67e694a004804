// internal/exchange/swap.go
package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/wallet"
)

// Swapper submits swaps on one exchange. Amounts are human units: TON
// for buys, tokens for sells. Submission is fire-and-forget; the
// reconciler confirms the outcome on chain later.
type Swapper interface {
	Dex() models.Dex
	Buy(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountTon decimal.Decimal) error
	Sell(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountToken decimal.Decimal) error
}

// stonFiSellSlippage is the fraction of the offered amount a StonFi
// sell will still accept back.
var stonFiSellSlippage = decimal.NewFromFloat(0.8)

type swapperBase struct {
	gateway wallet.Gateway
	swapGas decimal.Decimal
	logger  *zap.Logger
}

func (s *swapperBase) submit(ctx context.Context, dex models.Dex, side models.TxType, userID int64, tokenAddress, poolAddress string, offer, minAsk decimal.Decimal) error {
	userWallet, err := s.gateway.TonWallet(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve wallet for user %d: %w", userID, err)
	}

	req := wallet.SwapRequest{
		UserID:        userID,
		WalletAddress: userWallet.Address,
		Dex:           dex,
		Side:          side,
		TokenAddress:  tokenAddress,
		PoolAddress:   poolAddress,
		OfferAmount:   offer,
		MinAskAmount:  minAsk,
		GasAmount:     s.swapGas,
	}
	if err := s.gateway.SubmitSwap(ctx, req); err != nil {
		return err
	}

	s.logger.Info("swap submitted",
		zap.Int64("user_id", userID),
		zap.String("side", string(side)),
		zap.String("token", tokenAddress),
		zap.String("offer_amount", offer.String()))
	return nil
}

// DeDustSwapper trades through DeDust vaults.
type DeDustSwapper struct {
	swapperBase
}

func NewDeDustSwapper(gateway wallet.Gateway, swapGas decimal.Decimal, logger *zap.Logger) *DeDustSwapper {
	return &DeDustSwapper{swapperBase{gateway: gateway, swapGas: swapGas, logger: logger.Named("dedust")}}
}

func (s *DeDustSwapper) Dex() models.Dex { return models.DexDeDust }

func (s *DeDustSwapper) Buy(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountTon decimal.Decimal) error {
	return s.submit(ctx, models.DexDeDust, models.TxBuy, userID, tokenAddress, poolAddress, amountTon, decimal.Zero)
}

func (s *DeDustSwapper) Sell(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountToken decimal.Decimal) error {
	return s.submit(ctx, models.DexDeDust, models.TxSell, userID, tokenAddress, poolAddress, amountToken, decimal.Zero)
}

// StonFiSwapper trades through the StonFi router.
type StonFiSwapper struct {
	swapperBase
}

func NewStonFiSwapper(gateway wallet.Gateway, swapGas decimal.Decimal, logger *zap.Logger) *StonFiSwapper {
	return &StonFiSwapper{swapperBase{gateway: gateway, swapGas: swapGas, logger: logger.Named("stonfi")}}
}

func (s *StonFiSwapper) Dex() models.Dex { return models.DexStonFi }

func (s *StonFiSwapper) Buy(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountTon decimal.Decimal) error {
	return s.submit(ctx, models.DexStonFi, models.TxBuy, userID, tokenAddress, poolAddress, amountTon, decimal.Zero)
}

func (s *StonFiSwapper) Sell(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountToken decimal.Decimal) error {
	minAsk := amountToken.Mul(stonFiSellSlippage)
	return s.submit(ctx, models.DexStonFi, models.TxSell, userID, tokenAddress, poolAddress, amountToken, minAsk)
}
