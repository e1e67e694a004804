// internal/monitor/monitor.go

// Package monitor discovers TON-paired jetton pools on the supported
// exchanges and keeps their liquidity and price snapshots fresh.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tontrade/jettonbot/internal/exchange"
	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
	"github.com/tontrade/jettonbot/internal/tonapi"
)

// ChainReader is the slice of tonapi the monitor needs.
type ChainReader interface {
	TonPriceUSD(ctx context.Context) (decimal.Decimal, error)
	JettonInfo(ctx context.Context, address string) (*tonapi.JettonInfo, error)
	FirstTransactionTime(ctx context.Context, address string) (time.Time, error)
}

// Monitor runs the pool monitoring cycle.
type Monitor struct {
	store      storage.Storage
	chain      ChainReader
	exchanges  []exchange.ListingClient
	knownPools map[string]struct{}
	logger     *zap.Logger
}

func New(store storage.Storage, chain ChainReader, exchanges []exchange.ListingClient, logger *zap.Logger) *Monitor {
	return &Monitor{
		store:      store,
		chain:      chain,
		exchanges:  exchanges,
		knownPools: make(map[string]struct{}),
		logger:     logger.Named("monitor"),
	}
}

// Warmup primes the known-pool set from storage so restart does not
// re-announce every tracked pool as new.
func (m *Monitor) Warmup(ctx context.Context) error {
	tokens, err := m.store.ListTokens(ctx)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	for _, token := range tokens {
		for _, pool := range token.Pools {
			m.knownPools[pool.PoolAddress] = struct{}{}
		}
	}
	m.logger.Info("initialized known pools", zap.Int("count", len(m.knownPools)))
	return nil
}

// RunCycle executes one monitoring pass: refresh the TON price, pull
// all exchange listings, discover new tokens and recompute snapshots
// for every tracked pool still listed.
func (m *Monitor) RunCycle(ctx context.Context) error {
	start := time.Now()

	tonPrice, err := m.chain.TonPriceUSD(ctx)
	if err != nil {
		return fmt.Errorf("fetch TON price: %w", err)
	}

	listings, err := m.fetchAllListings(ctx)
	if err != nil {
		return err
	}

	tokens, err := m.store.ListTokens(ctx)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	tokensByAddress := make(map[string]*models.Token, len(tokens))
	for _, token := range tokens {
		tokensByAddress[token.FriendlyAddress] = token
	}

	var newTokens, updatedPools int
	for dex, pools := range listings {
		for _, listing := range pools {
			token, ok := tokensByAddress[listing.TokenAddress]
			if !ok {
				token = m.discoverToken(ctx, listing.TokenAddress)
				if token == nil {
					continue
				}
				tokensByAddress[token.FriendlyAddress] = token
				newTokens++
			}

			if err := m.upsertSnapshot(ctx, token, dex, listing, tonPrice); err != nil {
				m.logger.Warn("failed to update pool",
					zap.String("pool", listing.Address),
					zap.String("symbol", token.Symbol),
					zap.Error(err))
				continue
			}
			updatedPools++
		}
	}

	m.logger.Info("pool monitoring cycle completed",
		zap.Int("new_tokens", newTokens),
		zap.Int("updated_pools", updatedPools),
		zap.Duration("took", time.Since(start)))
	return nil
}

// fetchAllListings pulls every exchange's pool list concurrently. A
// breaker-wrapped client degrades to an empty listing on failure, so an
// error here is a programming bug rather than an upstream hiccup.
func (m *Monitor) fetchAllListings(ctx context.Context) (map[models.Dex][]exchange.PoolListing, error) {
	listings := make(map[models.Dex][]exchange.PoolListing, len(m.exchanges))
	g, gctx := errgroup.WithContext(ctx)

	results := make([][]exchange.PoolListing, len(m.exchanges))
	for i, client := range m.exchanges {
		g.Go(func() error {
			pools, err := client.FetchPools(gctx)
			if err != nil {
				return fmt.Errorf("fetch %s pools: %w", client.Dex(), err)
			}
			results[i] = pools
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, client := range m.exchanges {
		listings[client.Dex()] = results[i]
		m.logger.Debug("fetched exchange listing",
			zap.String("dex", string(client.Dex())),
			zap.Int("pools", len(results[i])))
	}
	return listings, nil
}

// discoverToken creates a token record from on-chain metadata. Either
// lookup failing skips the token this cycle; the next listing pass
// retries naturally.
func (m *Monitor) discoverToken(ctx context.Context, address string) *models.Token {
	info, err := m.chain.JettonInfo(ctx, address)
	if err != nil {
		m.logger.Debug("failed to fetch jetton metadata",
			zap.String("token", address), zap.Error(err))
		return nil
	}

	createdAt, err := m.chain.FirstTransactionTime(ctx, address)
	if err != nil {
		m.logger.Warn("failed to fetch first transaction for token",
			zap.String("token", address), zap.Error(err))
		return nil
	}

	decimals, err := strconv.ParseInt(info.Metadata.Decimals, 10, 32)
	if err != nil {
		decimals = tonDecimals
	}
	totalSupply, err := decimal.NewFromString(info.TotalSupply)
	if err != nil {
		m.logger.Warn("jetton reports unparseable total supply",
			zap.String("token", address), zap.String("total_supply", info.TotalSupply))
		return nil
	}

	token := &models.Token{
		CreatedAt:       createdAt,
		RawAddress:      info.Metadata.Address,
		FriendlyAddress: address,
		Symbol:          info.Metadata.Symbol,
		Name:            info.Metadata.Name,
		Decimals:        int32(decimals),
		TotalSupply:     totalSupply,
	}
	if err := m.store.CreateToken(ctx, token); err != nil {
		m.logger.Error("failed to create token",
			zap.String("token", address), zap.Error(err))
		return nil
	}

	m.logger.Info("new token created",
		zap.String("symbol", token.Symbol),
		zap.String("address", address))
	return token
}

func (m *Monitor) upsertSnapshot(ctx context.Context, token *models.Token, dex models.Dex, listing exchange.PoolListing, tonPrice decimal.Decimal) error {
	pool, err := ComputeSnapshot(SnapshotInput{
		TokenID:       token.ID,
		PoolAddress:   listing.Address,
		Dex:           dex,
		NativeReserve: listing.NativeReserve,
		TokenReserve:  listing.TokenReserve,
		TokenDecimals: token.Decimals,
		TotalSupply:   token.TotalSupply,
		TonPriceUSD:   tonPrice,
	})
	if err != nil {
		return err
	}

	if err := m.store.UpsertPool(ctx, &pool); err != nil {
		return err
	}
	if _, known := m.knownPools[listing.Address]; !known {
		m.knownPools[listing.Address] = struct{}{}
		m.logger.Info("tracking new pool",
			zap.String("symbol", token.Symbol),
			zap.String("dex", string(dex)),
			zap.String("pool", listing.Address))
	}
	return nil
}
