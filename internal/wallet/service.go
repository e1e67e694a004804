// internal/wallet/service.go
package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/tonapi"
)

// nanoton is the scale of native balances as tonapi reports them.
var nanoton = decimal.New(1, 9)

// ErrNoTonWallet is returned when a user has no wallet on the TON chain.
var ErrNoTonWallet = fmt.Errorf("user has no ton wallet")

// Service implements Gateway by combining stored wallet references,
// tonapi balance reads and the external signer.
type Service struct {
	store       storage.Storage
	chain       *tonapi.Client
	signer      *SignerClient
	transferGas decimal.Decimal
	logger      *zap.Logger
}

func NewService(store storage.Storage, chain *tonapi.Client, signer *SignerClient, transferGas decimal.Decimal, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		chain:       chain,
		signer:      signer,
		transferGas: transferGas,
		logger:      logger,
	}
}

func (s *Service) TonWallet(ctx context.Context, userID int64) (models.Wallet, error) {
	wallets, err := s.store.UserWallets(ctx, userID)
	if err != nil {
		return models.Wallet{}, fmt.Errorf("load wallets for user %d: %w", userID, err)
	}
	for _, w := range wallets {
		if w.Blockchain == models.BlockchainTon {
			return w, nil
		}
	}
	return models.Wallet{}, ErrNoTonWallet
}

func (s *Service) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	account, err := s.chain.Account(ctx, address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch account %s: %w", address, err)
	}
	return decimal.NewFromInt(account.Balance).Div(nanoton), nil
}

func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) error {
	// Amounts the gas would swallow are not worth a message.
	if req.AmountTon.LessThanOrEqual(s.transferGas) {
		s.logger.Debug("skipping transfer below gas cost",
			zap.Int64("user_id", req.UserID),
			zap.String("amount_ton", req.AmountTon.String()))
		return nil
	}

	amountToSend := req.AmountTon
	if !req.FeeTransfer {
		balance, err := s.Balance(ctx, req.FromAddress)
		if err != nil {
			return err
		}
		switch {
		case req.AmountTon.Equal(balance):
			amountToSend = balance.Sub(s.transferGas)
		case req.AmountTon.Add(s.transferGas).GreaterThan(balance):
			return fmt.Errorf("insufficient balance to cover amount and gas")
		default:
			amountToSend = req.AmountTon.Sub(s.transferGas)
		}
	}

	if err := s.signer.Transfer(ctx, req, amountToSend); err != nil {
		return fmt.Errorf("transfer %s TON from user %d: %w", amountToSend, req.UserID, err)
	}
	return nil
}

func (s *Service) SubmitSwap(ctx context.Context, req SwapRequest) error {
	if err := s.signer.Swap(ctx, req); err != nil {
		return fmt.Errorf("submit %s swap for user %d: %w", req.Side, req.UserID, err)
	}
	return nil
}
