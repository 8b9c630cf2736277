package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gitwithuli/edgeofict/internal/pkg/env"
)

const (
	defaultBaseURL = "https://api.nowpayments.io/v1"

	// Invoice creation is idempotent per order id, so a bounded retry on
	// transient failures is safe. 4xx responses are never retried.
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// orderPrefix is the fixed order-identifier convention. An incoming order id
// without this prefix is a foreign or malformed event and is hard-rejected.
const orderPrefix = "eoi_"

var (
	// ErrNotConfigured means the operator has not supplied API credentials.
	ErrNotConfigured = errors.New("nowpayments is not configured")
	// ErrBadGateway means the provider responded with something that fails
	// schema validation.
	ErrBadGateway = errors.New("nowpayments returned an invalid response")
	// ErrMalformedOrderID means an order id does not match the prefix
	// convention.
	ErrMalformedOrderID = errors.New("order id does not match expected format")
)

// InvoiceCreator is the capability the checkout handler depends on.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	Configured() bool
}

// Client talks to the NOWPayments REST API.
type Client struct {
	APIKey    string
	IPNSecret string
	BaseURL   string

	HTTPClient *http.Client
}

// InvoiceRequest describes the invoice to create.
type InvoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	SuccessURL       string  `json:"success_url"`
	CancelURL        string  `json:"cancel_url"`
	IPNCallbackURL   string  `json:"ipn_callback_url"`
}

// Invoice is the subset of the provider invoice we consume.
type Invoice struct {
	ID         json.Number `json:"id"`
	InvoiceURL string      `json:"invoice_url"`
	OrderID    string      `json:"order_id"`
}

// NewClientFromEnv builds a client from operator configuration. The returned
// client reports Configured() == false when the API key is absent.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:    strings.TrimSpace(env.GetEnv("NOWPAYMENTS_API_KEY", "")),
		IPNSecret: strings.TrimSpace(env.GetEnv("NOWPAYMENTS_IPN_SECRET", "")),
		BaseURL:   strings.TrimRight(env.GetEnv("NOWPAYMENTS_BASE_URL", defaultBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether invoice creation is possible.
func (c *Client) Configured() bool {
	return c.APIKey != ""
}

// CreateInvoice creates a hosted invoice and returns its redirect URL.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff << (attempt - 1)):
			}
		}

		invoice, retryable, err := c.postInvoice(ctx, body)
		if err == nil {
			return invoice, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) postInvoice(ctx context.Context, body []byte) (*Invoice, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/invoice", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("nowpayments invoice failed: status=%d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("nowpayments invoice rejected: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var invoice Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBadGateway, err)
	}
	if strings.TrimSpace(invoice.InvoiceURL) == "" {
		return nil, false, fmt.Errorf("%w: missing invoice_url", ErrBadGateway)
	}
	return &invoice, false, nil
}

// BuildOrderID encodes the user identity into the provider order id using
// the fixed prefix convention.
func BuildOrderID(userID uint) string {
	return fmt.Sprintf("%s%d_%s", orderPrefix, userID, uuid.New().String())
}

// ParseOrderID extracts the user id from an order id. Anything that does not
// match the convention is rejected, never silently ignored.
func ParseOrderID(orderID string) (uint, error) {
	if !strings.HasPrefix(orderID, orderPrefix) {
		return 0, ErrMalformedOrderID
	}
	rest := strings.TrimPrefix(orderID, orderPrefix)
	idPart, _, found := strings.Cut(rest, "_")
	if !found || idPart == "" {
		return 0, ErrMalformedOrderID
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrMalformedOrderID
	}
	return uint(id), nil
}
