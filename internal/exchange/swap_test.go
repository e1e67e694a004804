// internal/exchange/swap_test.go
package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/wallet"
)

type fakeGateway struct {
	swaps []wallet.SwapRequest
}

func (f *fakeGateway) TonWallet(ctx context.Context, userID int64) (models.Wallet, error) {
	return models.Wallet{UserID: userID, Address: "EQwallet", Blockchain: models.BlockchainTon}, nil
}

func (f *fakeGateway) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeGateway) Withdraw(ctx context.Context, req wallet.WithdrawRequest) error {
	return nil
}

func (f *fakeGateway) SubmitSwap(ctx context.Context, req wallet.SwapRequest) error {
	f.swaps = append(f.swaps, req)
	return nil
}

func TestDeDustSwapperSubmitsWithoutMinAsk(t *testing.T) {
	gw := &fakeGateway{}
	s := NewDeDustSwapper(gw, dec("0.25"), zaptest.NewLogger(t))

	require.NoError(t, s.Buy(context.Background(), 7, "EQtoken", "EQpool", dec("1.5")))
	require.NoError(t, s.Sell(context.Background(), 7, "EQtoken", "EQpool", dec("400")))
	require.Len(t, gw.swaps, 2)

	buy := gw.swaps[0]
	assert.Equal(t, models.DexDeDust, buy.Dex)
	assert.Equal(t, models.TxBuy, buy.Side)
	assert.Equal(t, "EQwallet", buy.WalletAddress)
	assert.True(t, buy.OfferAmount.Equal(dec("1.5")))
	assert.True(t, buy.MinAskAmount.IsZero())
	assert.True(t, buy.GasAmount.Equal(dec("0.25")))

	sell := gw.swaps[1]
	assert.Equal(t, models.TxSell, sell.Side)
	assert.True(t, sell.OfferAmount.Equal(dec("400")))
	assert.True(t, sell.MinAskAmount.IsZero())
}

func TestStonFiSwapperSellAppliesSlippage(t *testing.T) {
	gw := &fakeGateway{}
	s := NewStonFiSwapper(gw, dec("0.25"), zaptest.NewLogger(t))

	require.NoError(t, s.Buy(context.Background(), 7, "EQtoken", "EQpool", dec("2")))
	require.NoError(t, s.Sell(context.Background(), 7, "EQtoken", "EQpool", dec("500")))
	require.Len(t, gw.swaps, 2)

	assert.Equal(t, models.DexStonFi, gw.swaps[0].Dex)
	assert.True(t, gw.swaps[0].MinAskAmount.IsZero(), "buys leave min ask to the router")
	assert.True(t, gw.swaps[1].MinAskAmount.Equal(dec("400")), "sells accept 80%% of the offer back")
}
