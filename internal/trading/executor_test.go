// internal/trading/executor_test.go
package trading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tontrade/jettonbot/internal/exchange"
	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/wallet"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// mockStorage implements storage.Storage in memory. CreateFee runs on
// the fee-transfer goroutine, so writes are guarded.
type mockStorage struct {
	mu sync.Mutex

	tokens            []*models.Token
	strategies        []*models.Strategy
	netInvestment     decimal.Decimal
	pendingInvestment decimal.Decimal
	hasPending        bool
	balance           decimal.Decimal
	lastPrice         decimal.Decimal
	lastPriceErr      error

	created []*models.Transaction
	fees    []*models.Fee
	nextID  int64
}

func (m *mockStorage) CreateToken(ctx context.Context, token *models.Token) error { return nil }
func (m *mockStorage) TokenByID(ctx context.Context, id int64) (*models.Token, error) {
	for _, t := range m.tokens {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, storage.ErrNotFound
}
func (m *mockStorage) ListTokens(ctx context.Context) ([]*models.Token, error) {
	return m.tokens, nil
}
func (m *mockStorage) UpsertPool(ctx context.Context, pool *models.Pool) error { return nil }
func (m *mockStorage) UpsertStrategy(ctx context.Context, s *models.Strategy) error {
	return nil
}
func (m *mockStorage) StrategyByID(ctx context.Context, id int64) (*models.Strategy, error) {
	return nil, storage.ErrNotFound
}
func (m *mockStorage) ListActiveStrategies(ctx context.Context) ([]*models.Strategy, error) {
	return m.strategies, nil
}
func (m *mockStorage) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	tx.ID = m.nextID
	tx.CreatedAt = time.Now()
	m.created = append(m.created, tx)
	return nil
}
func (m *mockStorage) PendingTransactions(ctx context.Context) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*models.Transaction
	for _, tx := range m.created {
		if tx.Status == models.TxPending {
			pending = append(pending, tx)
		}
	}
	return pending, nil
}
func (m *mockStorage) HasPendingTransaction(ctx context.Context, userID, tokenID, strategyID int64) (bool, error) {
	return m.hasPending, nil
}
func (m *mockStorage) LatestTransactionPrice(ctx context.Context, tokenID int64) (decimal.Decimal, error) {
	return m.lastPrice, m.lastPriceErr
}
func (m *mockStorage) NetInvestment(ctx context.Context, strategyID int64) (decimal.Decimal, error) {
	return m.netInvestment, nil
}
func (m *mockStorage) PendingInvestment(ctx context.Context, strategyID int64) (decimal.Decimal, error) {
	return m.pendingInvestment, nil
}
func (m *mockStorage) StrategyPNL(ctx context.Context, strategyID int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (m *mockStorage) MarkTransactionSuccess(ctx context.Context, id int64, realized decimal.Decimal, side models.TxType, onchainID string) error {
	return nil
}
func (m *mockStorage) MarkTransactionFailed(ctx context.Context, id int64, onchainID string) error {
	return nil
}
func (m *mockStorage) CreateFee(ctx context.Context, fee *models.Fee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fees = append(m.fees, fee)
	return nil
}
func (m *mockStorage) TokenBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error) {
	return m.balance, nil
}
func (m *mockStorage) ApplyBalanceDelta(ctx context.Context, userID, tokenID int64, delta decimal.Decimal) error {
	return nil
}
func (m *mockStorage) UserWallets(ctx context.Context, userID int64) ([]models.Wallet, error) {
	return nil, nil
}
func (m *mockStorage) RunMigrations(ctx context.Context) error { return nil }
func (m *mockStorage) Close()                                  {}

func (m *mockStorage) recordedFees() []*models.Fee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Fee(nil), m.fees...)
}

type mockGateway struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	withdraws []wallet.WithdrawRequest
}

func (g *mockGateway) TonWallet(ctx context.Context, userID int64) (models.Wallet, error) {
	return models.Wallet{UserID: userID, Address: "EQwallet", Blockchain: models.BlockchainTon}, nil
}
func (g *mockGateway) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	return g.balance, nil
}
func (g *mockGateway) Withdraw(ctx context.Context, req wallet.WithdrawRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.withdraws = append(g.withdraws, req)
	return nil
}
func (g *mockGateway) SubmitSwap(ctx context.Context, req wallet.SwapRequest) error { return nil }

func (g *mockGateway) recordedWithdraws() []wallet.WithdrawRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]wallet.WithdrawRequest(nil), g.withdraws...)
}

// mockChain reports one raw-unit jetton balance for every wallet.
type mockChain struct {
	raw decimal.Decimal
	err error
}

func (c *mockChain) JettonBalance(ctx context.Context, owner, jetton string) (decimal.Decimal, error) {
	return c.raw, c.err
}

type swapCall struct {
	userID int64
	amount decimal.Decimal
}

type mockSwapper struct {
	dex   models.Dex
	err   error
	buys  []swapCall
	sells []swapCall
}

func (s *mockSwapper) Dex() models.Dex { return s.dex }
func (s *mockSwapper) Buy(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountTon decimal.Decimal) error {
	if s.err != nil {
		return s.err
	}
	s.buys = append(s.buys, swapCall{userID, amountTon})
	return nil
}
func (s *mockSwapper) Sell(ctx context.Context, userID int64, tokenAddress, poolAddress string, amountToken decimal.Decimal) error {
	if s.err != nil {
		return s.err
	}
	s.sells = append(s.sells, swapCall{userID, amountToken})
	return nil
}

func testExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		FeePercentage: dec("0.01"),
		FeeRecipient:  "EQfee-recipient",
		SwapGas:       dec("0.25"),
		TransferGas:   dec("0.005"),
	}
}

func testStrategy(maxBet string) *models.Strategy {
	return &models.Strategy{ID: 11, UserID: 7, Name: "test", IsActive: true, MaxBetAmount: dec(maxBet)}
}

func testTradeToken() *models.Token {
	return &models.Token{
		ID:              3,
		Symbol:          "PEPE",
		FriendlyAddress: "EQtoken",
		Decimals:        9,
		CreatedAt:       time.Now().Add(-72 * time.Hour),
		Pools: []models.Pool{{
			TokenID:           3,
			Dex:               models.DexDeDust,
			PoolAddress:       "EQpool",
			PriceUSD:          dec("0.01"),
			TotalLiquidityUSD: dec("20000"),
			MarketCapUSD:      dec("100000"),
		}},
	}
}

func newTestExecutor(t *testing.T, store *mockStorage, gw *mockGateway, swapper *mockSwapper) *Executor {
	t.Helper()
	// A raw balance large enough that the on-chain check never clamps.
	return newTestExecutorWithChain(t, store, gw, &mockChain{raw: dec("1000000000000000")}, swapper)
}

func newTestExecutorWithChain(t *testing.T, store *mockStorage, gw *mockGateway, chain *mockChain, swapper *mockSwapper) *Executor {
	t.Helper()
	return NewExecutor(store, gw, chain, []exchange.Swapper{swapper}, testExecutorConfig(), zaptest.NewLogger(t))
}

func TestExecuteBuySubmitsNetOfFee(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("100")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	err := e.ExecuteBuy(context.Background(), testStrategy("5"), testTradeToken(), dec("2"))
	require.NoError(t, err)
	e.Wait()

	require.Len(t, swapper.buys, 1)
	assert.True(t, swapper.buys[0].amount.Equal(dec("1.98")), "1%% fee comes off the submitted amount, got %s", swapper.buys[0].amount)

	require.Len(t, store.created, 1)
	tx := store.created[0]
	assert.Equal(t, models.TxBuy, tx.Type)
	assert.Equal(t, models.TxPending, tx.Status)
	assert.True(t, tx.AmountToken.IsZero(), "token amount unknown until reconciled")
	assert.True(t, tx.AmountTon.Equal(dec("1.98")))
	assert.True(t, tx.PriceUSD.Equal(dec("0.01")))

	withdraws := gw.recordedWithdraws()
	require.Len(t, withdraws, 1)
	assert.True(t, withdraws[0].AmountTon.Equal(dec("0.02")))
	assert.True(t, withdraws[0].FeeTransfer)
	assert.Equal(t, "EQfee-recipient", withdraws[0].ToAddress)

	fees := store.recordedFees()
	require.Len(t, fees, 1)
	assert.True(t, fees[0].AmountTon.Equal(dec("0.02")))
	assert.Equal(t, tx.ID, fees[0].TransactionID)
}

func TestExecuteBuyVetoedByStrategyBudget(t *testing.T) {
	store := &mockStorage{
		netInvestment:     dec("3"),
		pendingInvestment: dec("1.5"),
	}
	gw := &mockGateway{balance: dec("100")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	// Available budget is 5 - 3 - 1.5 = 0.5; cost is 2 + 0.25 gas.
	err := e.ExecuteBuy(context.Background(), testStrategy("5"), testTradeToken(), dec("2"))
	require.NoError(t, err, "a budget veto is not an error")
	e.Wait()

	assert.Empty(t, swapper.buys)
	assert.Empty(t, store.created)
	assert.Empty(t, store.recordedFees())
}

func TestExecuteBuyVetoedByWalletBalance(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("1")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	err := e.ExecuteBuy(context.Background(), testStrategy("5"), testTradeToken(), dec("2"))
	require.NoError(t, err)
	e.Wait()

	assert.Empty(t, swapper.buys)
	assert.Empty(t, store.created)
}

func TestExecuteBuyNoPoolFails(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("100")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	token := testTradeToken()
	token.Pools = nil
	err := e.ExecuteBuy(context.Background(), testStrategy("5"), token, dec("2"))
	assert.Error(t, err)
}

func TestExecuteBuySwapFailureLeavesNoRecord(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("100")}
	swapper := &mockSwapper{dex: models.DexDeDust, err: errors.New("signer down")}
	e := newTestExecutor(t, store, gw, swapper)

	err := e.ExecuteBuy(context.Background(), testStrategy("5"), testTradeToken(), dec("2"))
	require.Error(t, err)
	e.Wait()

	assert.Empty(t, store.created)
	assert.Empty(t, store.recordedFees())
}

func TestExecuteSellRecordsEstimate(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("1")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	err := e.ExecuteSell(context.Background(), testStrategy("5"), testTradeToken(), dec("400.1234567891"))
	require.NoError(t, err)
	e.Wait()

	require.Len(t, swapper.sells, 1)
	assert.True(t, swapper.sells[0].amount.Equal(dec("400.123456789")), "sell amount rounds down to 9 places, got %s", swapper.sells[0].amount)

	require.Len(t, store.created, 1)
	tx := store.created[0]
	assert.Equal(t, models.TxSell, tx.Type)
	assert.True(t, tx.AmountToken.Equal(dec("400.123456789")))
	// Estimated proceeds: 400.123456789 * 0.01.
	assert.True(t, tx.AmountTon.Equal(dec("4.00123456789")), "estimate: %s", tx.AmountTon)

	fees := store.recordedFees()
	require.Len(t, fees, 1)
	// 1% of the estimate, rounded to 9 places.
	assert.True(t, fees[0].AmountTon.Equal(dec("0.040012346")), "fee: %s", fees[0].AmountTon)
}

func TestExecuteSellSkippedWithoutGasReserve(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("0.1")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	err := e.ExecuteSell(context.Background(), testStrategy("5"), testTradeToken(), dec("400"))
	require.NoError(t, err, "missing gas reserve skips the sell without error")
	e.Wait()

	assert.Empty(t, swapper.sells)
	assert.Empty(t, store.created)
}

func TestExecuteSellZeroAmountSkipped(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("1")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	err := e.ExecuteSell(context.Background(), testStrategy("5"), testTradeToken(), dec("0.0000000001"))
	require.NoError(t, err)
	e.Wait()

	assert.Empty(t, swapper.sells)
	assert.Empty(t, store.created)
}

func TestExecuteSellClampsToOnchainBalance(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("1")}
	// Wallet holds 250.5 tokens at 9 decimals, less than the recorded 400.
	chain := &mockChain{raw: dec("250500000000")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutorWithChain(t, store, gw, chain, swapper)

	err := e.ExecuteSell(context.Background(), testStrategy("5"), testTradeToken(), dec("400"))
	require.NoError(t, err)
	e.Wait()

	require.Len(t, swapper.sells, 1)
	assert.True(t, swapper.sells[0].amount.Equal(dec("250.5")), "sell clamps to the wallet's holding, got %s", swapper.sells[0].amount)
	require.Len(t, store.created, 1)
	assert.True(t, store.created[0].AmountToken.Equal(dec("250.5")))
}

func TestExecuteSellSkipsWhenNothingOnchain(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("1")}
	chain := &mockChain{raw: decimal.Zero}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutorWithChain(t, store, gw, chain, swapper)

	err := e.ExecuteSell(context.Background(), testStrategy("5"), testTradeToken(), dec("400"))
	require.NoError(t, err, "an empty jetton wallet skips the sell without error")
	e.Wait()

	assert.Empty(t, swapper.sells)
	assert.Empty(t, store.created)
}

func TestExecuteSellBalanceCheckFailure(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("1")}
	chain := &mockChain{err: errors.New("tonapi down")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutorWithChain(t, store, gw, chain, swapper)

	err := e.ExecuteSell(context.Background(), testStrategy("5"), testTradeToken(), dec("400"))
	require.Error(t, err, "the next cycle retries once tonapi recovers")
	assert.Empty(t, swapper.sells)
	assert.Empty(t, store.created)
}

func TestFeeBelowTransferGasRecordsZeroRow(t *testing.T) {
	store := &mockStorage{}
	gw := &mockGateway{balance: dec("100")}
	swapper := &mockSwapper{dex: models.DexDeDust}
	e := newTestExecutor(t, store, gw, swapper)

	// 1% of 0.4 TON is 0.004, below the 0.005 transfer gas.
	err := e.ExecuteBuy(context.Background(), testStrategy("5"), testTradeToken(), dec("0.4"))
	require.NoError(t, err)
	e.Wait()

	assert.Empty(t, gw.recordedWithdraws(), "uneconomical fee is not transferred")
	fees := store.recordedFees()
	require.Len(t, fees, 1)
	assert.True(t, fees[0].AmountTon.IsZero(), "row still recorded for accounting")
}
