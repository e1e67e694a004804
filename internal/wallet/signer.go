// internal/wallet/signer.go
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// SignerClient talks to the external signing service that holds wallet
// keys. It builds, signs and broadcasts messages; this process never
// sees key material.
type SignerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSignerClient(baseURL string, timeout time.Duration) *SignerClient {
	return &SignerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type transferPayload struct {
	UserID      int64  `json:"user_id"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	AmountTon   string `json:"amount_ton"`
	FeeTransfer bool   `json:"fee_transfer"`
}

type swapPayload struct {
	UserID        int64  `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	Dex           string `json:"dex"`
	Side          string `json:"side"`
	TokenAddress  string `json:"token_address"`
	PoolAddress   string `json:"pool_address,omitempty"`
	OfferAmount   string `json:"offer_amount"`
	MinAskAmount  string `json:"min_ask_amount"`
	GasAmount     string `json:"gas_amount"`
}

// Transfer submits a native transfer for signing.
func (s *SignerClient) Transfer(ctx context.Context, req WithdrawRequest, amountToSend decimal.Decimal) error {
	return s.post(ctx, "/v1/transfer", transferPayload{
		UserID:      req.UserID,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		AmountTon:   amountToSend.String(),
		FeeTransfer: req.FeeTransfer,
	})
}

// Swap submits a swap for signing. Callers must not retry: the signer
// broadcasts immediately and a second call is a second trade.
func (s *SignerClient) Swap(ctx context.Context, req SwapRequest) error {
	return s.post(ctx, "/v1/swap", swapPayload{
		UserID:        req.UserID,
		WalletAddress: req.WalletAddress,
		Dex:           string(req.Dex),
		Side:          string(req.Side),
		TokenAddress:  req.TokenAddress,
		PoolAddress:   req.PoolAddress,
		OfferAmount:   req.OfferAmount.String(),
		MinAskAmount:  req.MinAskAmount.String(),
		GasAmount:     req.GasAmount.String(),
	})
}

func (s *SignerClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode signer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("signer rejected %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}
