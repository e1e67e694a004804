// internal/tonapi/client.go
package tonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// nanoton is the scale of native TON amounts on the wire.
var nanoton = decimal.New(1, 9)

// Client reads chain data from a tonapi.io-compatible server. All
// requests retry with exponential backoff on transient failures.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxTries   uint
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, maxTries int, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxTries:   uint(maxTries),
		logger:     logger,
	}
}

// statusError marks an HTTP response outside the 2xx range.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{code: resp.StatusCode, body: string(body)}
			// Client errors will not heal with retries; 429 is the exception.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return struct{}{}, backoff.Permanent(serr)
			}
			return struct{}{}, serr
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("tonapi request failed, retrying",
				zap.String("path", path),
				zap.Duration("retry_in", d),
				zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

// Account fetches the basic account state for an address.
func (c *Client) Account(ctx context.Context, address string) (*Account, error) {
	var account Account
	if err := c.getJSON(ctx, "/v2/accounts/"+url.PathEscape(address), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// JettonInfo fetches the jetton master metadata for a token address.
func (c *Client) JettonInfo(ctx context.Context, address string) (*JettonInfo, error) {
	var info JettonInfo
	if err := c.getJSON(ctx, "/v2/jettons/"+url.PathEscape(address), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// TonPriceUSD fetches the current TON/USD rate.
func (c *Client) TonPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Rates struct {
			TON struct {
				Prices struct {
					USD decimal.Decimal `json:"USD"`
				} `json:"prices"`
			} `json:"TON"`
		} `json:"rates"`
	}
	if err := c.getJSON(ctx, "/v2/rates?tokens=ton&currencies=usd", &out); err != nil {
		return decimal.Zero, err
	}
	if out.Rates.TON.Prices.USD.IsZero() {
		return decimal.Zero, fmt.Errorf("tonapi returned zero TON/USD rate")
	}
	return out.Rates.TON.Prices.USD, nil
}

// JettonBalance fetches an account's raw-unit balance of one jetton.
// A missing jetton wallet reads as zero.
func (c *Client) JettonBalance(ctx context.Context, owner, jetton string) (decimal.Decimal, error) {
	var out JettonBalance
	path := fmt.Sprintf("/v2/accounts/%s/jettons/%s", url.PathEscape(owner), url.PathEscape(jetton))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return decimal.Zero, err
	}
	if out.Balance == "" {
		return decimal.Zero, nil
	}
	balance, err := decimal.NewFromString(out.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse jetton balance %q: %w", out.Balance, err)
	}
	return balance, nil
}

// AccountEvents fetches the most recent events for an account.
func (c *Client) AccountEvents(ctx context.Context, address string, limit int) ([]Event, error) {
	var out struct {
		Events []Event `json:"events"`
	}
	path := fmt.Sprintf("/v2/accounts/%s/events?limit=%d", url.PathEscape(address), limit)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// AccountTransactions fetches raw account transactions, newest first
// when order is "desc", oldest first when "asc".
func (c *Client) AccountTransactions(ctx context.Context, address string, limit int, order string) ([]BlockchainTransaction, error) {
	var out struct {
		Transactions []BlockchainTransaction `json:"transactions"`
	}
	path := fmt.Sprintf("/v2/blockchain/accounts/%s/transactions?limit=%d&sort_order=%s",
		url.PathEscape(address), limit, order)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// FirstTransactionTime returns the timestamp of the oldest transaction
// on an account, which for a jetton master is its deploy time.
func (c *Client) FirstTransactionTime(ctx context.Context, address string) (time.Time, error) {
	txs, err := c.AccountTransactions(ctx, address, 1, "asc")
	if err != nil {
		return time.Time{}, err
	}
	if len(txs) == 0 {
		return time.Time{}, fmt.Errorf("account %s has no transactions", address)
	}
	return time.Unix(txs[0].UTime, 0).UTC(), nil
}
