// internal/monitor/monitor_test.go
package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tontrade/jettonbot/internal/exchange"
	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/tonapi"
)

type mockStore struct {
	storage.Storage

	tokens  []*models.Token
	created []*models.Token
	pools   []*models.Pool
	nextID  int64
}

func (m *mockStore) ListTokens(ctx context.Context) ([]*models.Token, error) {
	return m.tokens, nil
}

func (m *mockStore) CreateToken(ctx context.Context, token *models.Token) error {
	m.nextID++
	token.ID = m.nextID
	m.created = append(m.created, token)
	return nil
}

func (m *mockStore) UpsertPool(ctx context.Context, pool *models.Pool) error {
	m.pools = append(m.pools, pool)
	return nil
}

type mockChain struct {
	tonPrice    decimal.Decimal
	tonPriceErr error
	jettons     map[string]*tonapi.JettonInfo
	createdAt   time.Time
}

func (m *mockChain) TonPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return m.tonPrice, m.tonPriceErr
}

func (m *mockChain) JettonInfo(ctx context.Context, address string) (*tonapi.JettonInfo, error) {
	info, ok := m.jettons[address]
	if !ok {
		return nil, errors.New("jetton not found")
	}
	return info, nil
}

func (m *mockChain) FirstTransactionTime(ctx context.Context, address string) (time.Time, error) {
	return m.createdAt, nil
}

type staticListing struct {
	dex   models.Dex
	pools []exchange.PoolListing
}

func (s staticListing) Dex() models.Dex { return s.dex }
func (s staticListing) FetchPools(context.Context) ([]exchange.PoolListing, error) {
	return s.pools, nil
}

func knownToken() *models.Token {
	return &models.Token{
		ID:              1,
		CreatedAt:       time.Now().Add(-48 * time.Hour),
		RawAddress:      "0:known",
		FriendlyAddress: "EQknown",
		Symbol:          "KNOWN",
		Decimals:        9,
		TotalSupply:     dec("1000000000000000"),
		Pools: []models.Pool{{
			TokenID: 1, Dex: models.DexDeDust, PoolAddress: "pool-known",
		}},
	}
}

func TestMonitorRefreshesKnownPool(t *testing.T) {
	store := &mockStore{tokens: []*models.Token{knownToken()}}
	chain := &mockChain{tonPrice: dec("5")}
	listing := staticListing{dex: models.DexDeDust, pools: []exchange.PoolListing{{
		Address:       "pool-known",
		TokenAddress:  "EQknown",
		NativeReserve: dec("1000000000000"),
		TokenReserve:  dec("500000000000000"),
	}}}
	m := New(store, chain, []exchange.ListingClient{listing}, zaptest.NewLogger(t))
	require.NoError(t, m.Warmup(context.Background()))

	require.NoError(t, m.RunCycle(context.Background()))

	assert.Empty(t, store.created, "known token is not re-created")
	require.Len(t, store.pools, 1)
	pool := store.pools[0]
	assert.Equal(t, int64(1), pool.TokenID)
	assert.True(t, pool.PriceUSD.Equal(dec("0.01")))
	assert.True(t, pool.TotalLiquidityUSD.Equal(dec("10000")))
}

func TestMonitorDiscoversNewToken(t *testing.T) {
	store := &mockStore{}
	chain := &mockChain{
		tonPrice:  dec("5"),
		createdAt: time.Now().Add(-time.Hour),
		jettons: map[string]*tonapi.JettonInfo{
			"EQnew": {
				TotalSupply: "1000000000000000",
				Metadata: tonapi.JettonMetadata{
					Address:  "0:new",
					Name:     "New Coin",
					Symbol:   "NEW",
					Decimals: "9",
				},
			},
		},
	}
	listing := staticListing{dex: models.DexStonFi, pools: []exchange.PoolListing{{
		Address:       "pool-new",
		TokenAddress:  "EQnew",
		NativeReserve: dec("1000000000000"),
		TokenReserve:  dec("500000000000000"),
	}}}
	m := New(store, chain, []exchange.ListingClient{listing}, zaptest.NewLogger(t))

	require.NoError(t, m.RunCycle(context.Background()))

	require.Len(t, store.created, 1)
	token := store.created[0]
	assert.Equal(t, "NEW", token.Symbol)
	assert.Equal(t, "0:new", token.RawAddress)
	assert.Equal(t, "EQnew", token.FriendlyAddress)
	assert.Equal(t, int32(9), token.Decimals)

	require.Len(t, store.pools, 1)
	assert.Equal(t, token.ID, store.pools[0].TokenID)
	assert.Equal(t, models.DexStonFi, store.pools[0].Dex)
}

func TestMonitorCycleIsIdempotent(t *testing.T) {
	store := &mockStore{tokens: []*models.Token{knownToken()}}
	chain := &mockChain{tonPrice: dec("5")}
	listing := staticListing{dex: models.DexDeDust, pools: []exchange.PoolListing{{
		Address:       "pool-known",
		TokenAddress:  "EQknown",
		NativeReserve: dec("1000000000000"),
		TokenReserve:  dec("500000000000000"),
	}}}
	m := New(store, chain, []exchange.ListingClient{listing}, zaptest.NewLogger(t))
	require.NoError(t, m.Warmup(context.Background()))

	require.NoError(t, m.RunCycle(context.Background()))
	require.NoError(t, m.RunCycle(context.Background()))

	assert.Empty(t, store.created)
	require.Len(t, store.pools, 2)
	first, second := store.pools[0], store.pools[1]
	assert.True(t, second.NativeLiquidity.Equal(first.NativeLiquidity))
	assert.True(t, second.AssetLiquidity.Equal(first.AssetLiquidity))
	assert.True(t, second.PriceTon.Equal(first.PriceTon))
	assert.True(t, second.PriceUSD.Equal(first.PriceUSD))
	assert.True(t, second.TotalLiquidityUSD.Equal(first.TotalLiquidityUSD))
	assert.True(t, second.MarketCapUSD.Equal(first.MarketCapUSD), "same upstream data, same snapshot")
}

func TestMonitorSkipsTokenWithoutMetadata(t *testing.T) {
	store := &mockStore{}
	chain := &mockChain{tonPrice: dec("5")} // no jettons registered
	listing := staticListing{dex: models.DexDeDust, pools: []exchange.PoolListing{{
		Address:       "pool-x",
		TokenAddress:  "EQunknown",
		NativeReserve: dec("1"),
		TokenReserve:  dec("1"),
	}}}
	m := New(store, chain, []exchange.ListingClient{listing}, zaptest.NewLogger(t))

	require.NoError(t, m.RunCycle(context.Background()), "metadata failures skip the token, not the cycle")
	assert.Empty(t, store.created)
	assert.Empty(t, store.pools)
}

func TestMonitorAbortsWithoutTonPrice(t *testing.T) {
	store := &mockStore{}
	chain := &mockChain{tonPriceErr: errors.New("rates unavailable")}
	m := New(store, chain, nil, zaptest.NewLogger(t))

	assert.Error(t, m.RunCycle(context.Background()))
}

func TestMonitorFallsBackToNineDecimals(t *testing.T) {
	store := &mockStore{}
	chain := &mockChain{
		tonPrice:  dec("5"),
		createdAt: time.Now().Add(-time.Hour),
		jettons: map[string]*tonapi.JettonInfo{
			"EQnew": {
				TotalSupply: "1000",
				Metadata: tonapi.JettonMetadata{
					Address:  "0:new",
					Symbol:   "NEW",
					Decimals: "not-a-number",
				},
			},
		},
	}
	listing := staticListing{dex: models.DexDeDust, pools: []exchange.PoolListing{{
		Address:       "pool-new",
		TokenAddress:  "EQnew",
		NativeReserve: dec("1000000000"),
		TokenReserve:  dec("1000000000"),
	}}}
	m := New(store, chain, []exchange.ListingClient{listing}, zaptest.NewLogger(t))

	require.NoError(t, m.RunCycle(context.Background()))
	require.Len(t, store.created, 1)
	assert.Equal(t, int32(9), store.created[0].Decimals)
}
