package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitwithuli/edgeofict/internal/pkg/payments/nowpayments"
)

func newWebhookApp() *fiber.App {
	app := fiber.New()
	app.Post("/api/webhooks/nowpayments", HandleNowPaymentsWebhook)
	app.Post("/api/webhooks/stripe", HandleStripeWebhook)
	return app
}

func signIPN(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	canonical, err := nowpayments.CanonicalJSON(payload)
	require.NoError(t, err)
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	s, _ := out["error"].(string)
	return s
}

func TestNowPaymentsWebhook_RejectionPaths(t *testing.T) {
	payload := []byte(`{"payment_id":123,"payment_status":"finished","order_id":"other_7_x"}`)

	t.Run("NoSecretConfigured", func(t *testing.T) {
		os.Unsetenv("NOWPAYMENTS_IPN_SECRET")
		app := newWebhookApp()

		req := httptest.NewRequest("POST", "/api/webhooks/nowpayments", bytes.NewReader(payload))
		req.Header.Set("x-nowpayments-sig", signIPN(t, payload, "whatever"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "ipn_secret_not_configured", decodeError(t, resp.Body))
	})

	os.Setenv("NOWPAYMENTS_IPN_SECRET", "test-ipn-secret")
	t.Cleanup(func() { os.Unsetenv("NOWPAYMENTS_IPN_SECRET") })

	t.Run("MissingSignature", func(t *testing.T) {
		app := newWebhookApp()
		resp, err := app.Test(httptest.NewRequest("POST", "/api/webhooks/nowpayments", bytes.NewReader(payload)))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "missing_signature", decodeError(t, resp.Body))
	})

	t.Run("WrongSignature", func(t *testing.T) {
		app := newWebhookApp()
		req := httptest.NewRequest("POST", "/api/webhooks/nowpayments", bytes.NewReader(payload))
		req.Header.Set("x-nowpayments-sig", signIPN(t, payload, "a-different-secret"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "invalid_signature", decodeError(t, resp.Body))
	})

	t.Run("UnparsablePayload", func(t *testing.T) {
		app := newWebhookApp()
		body := []byte(`{not json`)
		req := httptest.NewRequest("POST", "/api/webhooks/nowpayments", bytes.NewReader(body))
		req.Header.Set("x-nowpayments-sig", "deadbeef")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_payload", decodeError(t, resp.Body))
	})

	t.Run("ForeignOrderID", func(t *testing.T) {
		// Correctly signed, but the order id belongs to someone else's shop.
		app := newWebhookApp()
		req := httptest.NewRequest("POST", "/api/webhooks/nowpayments", bytes.NewReader(payload))
		req.Header.Set("x-nowpayments-sig", signIPN(t, payload, "test-ipn-secret"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "malformed_order_id", decodeError(t, resp.Body))
	})
}

func TestStripeWebhook_RejectionPaths(t *testing.T) {
	for _, key := range []string{"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_PRICE_TRADER", "STRIPE_PRICE_INNER_CIRCLE"} {
		os.Unsetenv(key)
	}

	t.Run("NoWebhookSecret", func(t *testing.T) {
		app := newWebhookApp()
		resp, err := app.Test(httptest.NewRequest("POST", "/api/webhooks/stripe", bytes.NewReader([]byte(`{}`))))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "webhook_secret_not_configured", decodeError(t, resp.Body))
	})

	os.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Cleanup(func() { os.Unsetenv("STRIPE_WEBHOOK_SECRET") })

	t.Run("MissingSignatureHeader", func(t *testing.T) {
		app := newWebhookApp()
		resp, err := app.Test(httptest.NewRequest("POST", "/api/webhooks/stripe", bytes.NewReader([]byte(`{}`))))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "missing_signature", decodeError(t, resp.Body))
	})

	t.Run("InvalidSignatureHeader", func(t *testing.T) {
		app := newWebhookApp()
		req := httptest.NewRequest("POST", "/api/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_signature", decodeError(t, resp.Body))
	})
}
