package stripepay

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/gitwithuli/edgeofict/internal/pkg/env"
)

// ErrNotConfigured is returned when a Stripe operation is attempted without
// a secret key in the environment.
var ErrNotConfigured = errors.New("stripepay: stripe is not configured")

// Client wraps the Stripe SDK for checkout, billing portal and webhook
// verification. A Client with an empty secret key is valid; every operation
// on it fails with ErrNotConfigured so callers can fall back to the
// simulated checkout path.
type Client struct {
	secretKey     string
	webhookSecret string
	Prices        *PriceMap
}

// NewClientFromEnv builds a Client from STRIPE_SECRET_KEY,
// STRIPE_WEBHOOK_SECRET and the price mapping variables. Missing keys do
// not error; an inconsistent price map does.
func NewClientFromEnv() (*Client, error) {
	prices, err := NewPriceMapFromEnv()
	if err != nil {
		return nil, err
	}

	c := &Client{
		secretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
		webhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		Prices:        prices,
	}
	if c.Configured() && prices.Empty() {
		return nil, fmt.Errorf("stripepay: STRIPE_SECRET_KEY is set but no price mapping is configured")
	}
	if c.Configured() {
		stripe.Key = c.secretKey
	}
	return c, nil
}

// Configured reports whether live Stripe calls can be made.
func (c *Client) Configured() bool {
	return c.secretKey != ""
}

// WebhookConfigured reports whether incoming events can be verified.
func (c *Client) WebhookConfigured() bool {
	return c.webhookSecret != ""
}

// CreateCheckoutSession opens a subscription checkout for the given plan and
// returns the hosted payment page URL. The user id travels in the session
// metadata and client reference so the webhook can attribute the purchase.
func (c *Client) CreateCheckoutSession(userID uint, email, plan, successURL, cancelURL string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	priceID, ok := c.Prices.PriceForPlan(plan)
	if !ok {
		return "", fmt.Errorf("stripepay: no price configured for plan %q", plan)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		CustomerEmail:     stripe.String(email),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(userID), 10)),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))
	params.AddMetadata("plan", plan)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripepay: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the Stripe billing portal for an existing
// customer so they can manage or cancel their subscription.
func (c *Client) CreatePortalSession(customerID, returnURL string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("stripepay: create portal session: %w", err)
	}
	return sess.URL, nil
}

// VerifyEvent checks the webhook signature and parses the event payload.
// Verification happens before any field of the payload is trusted.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if !c.WebhookConfigured() {
		return stripe.Event{}, ErrNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
