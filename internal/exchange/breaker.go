// internal/exchange/breaker.go
package exchange

import (
	"context"

	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/storage/models"
)

// probeEvery is how many skipped cycles an open breaker waits before
// letting one request through to test the exchange.
const probeEvery = 10

// Breaker wraps a ListingClient and stops calling it after a run of
// consecutive failures. A skipped fetch returns an empty listing so a
// flaky exchange degrades the cycle instead of failing it. While open,
// every tenth cycle probes the exchange; a success resets the counter
// and closes the breaker.
//
// The monitor drives one breaker per exchange from a single goroutine,
// so the counters need no locking.
type Breaker struct {
	client    ListingClient
	threshold int
	failures  int
	skipped   int
	logger    *zap.Logger
}

func NewBreaker(client ListingClient, threshold int, logger *zap.Logger) *Breaker {
	return &Breaker{
		client:    client,
		threshold: threshold,
		logger:    logger.Named("breaker").With(zap.String("dex", string(client.Dex()))),
	}
}

func (b *Breaker) Dex() models.Dex { return b.client.Dex() }

func (b *Breaker) FetchPools(ctx context.Context) ([]PoolListing, error) {
	if b.failures >= b.threshold {
		b.skipped++
		if b.skipped%probeEvery != 0 {
			b.logger.Info("listing calls disabled due to repeated failures",
				zap.Int("consecutive_failures", b.failures))
			return nil, nil
		}
		b.logger.Info("probing exchange after repeated failures")
	}

	pools, err := b.client.FetchPools(ctx)
	if err != nil {
		b.failures++
		b.logger.Error("listing fetch failed",
			zap.Int("consecutive_failures", b.failures),
			zap.Error(err))
		return nil, nil
	}
	b.failures = 0
	b.skipped = 0
	return pools, nil
}
