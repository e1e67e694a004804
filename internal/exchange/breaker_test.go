// internal/exchange/breaker_test.go
package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

type fakeListingClient struct {
	calls int
	fail  bool
	pools []PoolListing
}

func (f *fakeListingClient) Dex() models.Dex { return models.DexDeDust }

func (f *fakeListingClient) FetchPools(context.Context) ([]PoolListing, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("exchange down")
	}
	return f.pools, nil
}

func TestBreakerDegradesFailuresToEmptyListing(t *testing.T) {
	client := &fakeListingClient{fail: true}
	b := NewBreaker(client, 5, zaptest.NewLogger(t))

	pools, err := b.FetchPools(context.Background())
	require.NoError(t, err, "a failing exchange must not fail the cycle")
	assert.Empty(t, pools)
	assert.Equal(t, 1, client.calls)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	client := &fakeListingClient{fail: true}
	b := NewBreaker(client, 5, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		_, err := b.FetchPools(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 5, client.calls)

	// Open: the next cycles skip the exchange entirely.
	for i := 0; i < 3; i++ {
		pools, err := b.FetchPools(context.Background())
		require.NoError(t, err)
		assert.Empty(t, pools)
	}
	assert.Equal(t, 5, client.calls, "open breaker must not reach the exchange")
}

func TestBreakerProbesWhileOpen(t *testing.T) {
	client := &fakeListingClient{fail: true}
	b := NewBreaker(client, 5, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		b.FetchPools(context.Background())
	}

	// Nine skipped cycles, then the tenth probes.
	for i := 0; i < 9; i++ {
		b.FetchPools(context.Background())
	}
	assert.Equal(t, 5, client.calls)

	b.FetchPools(context.Background())
	assert.Equal(t, 6, client.calls, "tenth skipped cycle probes the exchange")

	// Probe failed, so the breaker stays open for another nine cycles.
	for i := 0; i < 9; i++ {
		b.FetchPools(context.Background())
	}
	assert.Equal(t, 6, client.calls)
}

func TestBreakerClosesOnSuccessfulProbe(t *testing.T) {
	client := &fakeListingClient{fail: true}
	b := NewBreaker(client, 5, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		b.FetchPools(context.Background())
	}
	for i := 0; i < 9; i++ {
		b.FetchPools(context.Background())
	}

	client.fail = false
	client.pools = []PoolListing{{Address: "pool-1"}}

	pools, err := b.FetchPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1, "successful probe returns real listings")

	// Closed again: every cycle reaches the exchange.
	calls := client.calls
	b.FetchPools(context.Background())
	b.FetchPools(context.Background())
	assert.Equal(t, calls+2, client.calls)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	client := &fakeListingClient{fail: true}
	b := NewBreaker(client, 5, zaptest.NewLogger(t))

	for i := 0; i < 4; i++ {
		b.FetchPools(context.Background())
	}
	client.fail = false
	b.FetchPools(context.Background())
	client.fail = true

	// Four more failures stay under the threshold after the reset.
	for i := 0; i < 4; i++ {
		b.FetchPools(context.Background())
	}
	pools, err := b.FetchPools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pools)
	assert.Equal(t, 10, client.calls)
}
