// internal/exchange/http.go
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// getJSON fetches a listing endpoint with exponential backoff on
// transient failures.
func getJSON(ctx context.Context, client *http.Client, url string, maxTries uint, logger *zap.Logger, out any) error {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Warn("listing request failed, retrying",
				zap.String("url", url),
				zap.Duration("retry_in", d),
				zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	return nil
}
