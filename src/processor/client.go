package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/services"
)

// minorUnits converts a decimal major-unit amount into processor minor units.
var minorUnits = decimal.NewFromInt(100)

// Client is a thin JSON/HTTP client for the payment-processor API. It
// implements services.PaymentProcessor.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

// New creates a processor client.
func New(baseURL, apiKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

type checkoutSessionRequest struct {
	Reference          string `json:"reference"`
	AmountMinor        int64  `json:"amount"`
	Currency           string `json:"currency"`
	Description        string `json:"description"`
	ConnectedAccountID string `json:"connected_account_id"`
	ApplicationFee     int64  `json:"application_fee"`
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession opens a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params services.CheckoutSessionParams) (*services.CheckoutSession, error) {
	req := checkoutSessionRequest{
		Reference:          params.PaymentID.String(),
		AmountMinor:        params.Amount.Mul(minorUnits).IntPart(),
		Currency:           params.Currency,
		Description:        params.Description,
		ConnectedAccountID: params.ConnectedAccountID,
		ApplicationFee:     params.ApplicationFee.Mul(minorUnits).IntPart(),
	}
	var resp checkoutSessionResponse
	if err := c.post(ctx, "/v1/checkout/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &services.CheckoutSession{ID: resp.ID, URL: resp.URL}, nil
}

type connectedAccountResponse struct {
	ID              string `json:"id"`
	TransfersActive bool   `json:"transfers_active"`
}

// CreateConnectedAccount provisions a landlord sub-account.
func (c *Client) CreateConnectedAccount(ctx context.Context, landlordID uuid.UUID, email string) (*services.ConnectedAccount, error) {
	req := map[string]string{
		"reference": landlordID.String(),
		"email":     email,
	}
	var resp connectedAccountResponse
	if err := c.post(ctx, "/v1/accounts", req, &resp); err != nil {
		return nil, err
	}
	return &services.ConnectedAccount{ID: resp.ID, TransfersActive: resp.TransfersActive}, nil
}

// GetConnectedAccount fetches a sub-account's current capability state.
func (c *Client) GetConnectedAccount(ctx context.Context, accountID string) (*services.ConnectedAccount, error) {
	var resp connectedAccountResponse
	if err := c.get(ctx, "/v1/accounts/"+accountID, &resp); err != nil {
		return nil, err
	}
	return &services.ConnectedAccount{ID: resp.ID, TransfersActive: resp.TransfersActive}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("processor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("processor returned non-2xx",
			zap.String("path", req.URL.Path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("processor %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
