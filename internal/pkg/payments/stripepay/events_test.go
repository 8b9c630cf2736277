package stripepay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutSessionUserID(t *testing.T) {
	t.Run("MetadataWins", func(t *testing.T) {
		s := &CheckoutSession{
			ClientReferenceID: "7",
			Metadata:          map[string]string{"user_id": "42"},
		}
		assert.Equal(t, "42", s.UserID())
	})

	t.Run("FallsBackToClientReference", func(t *testing.T) {
		s := &CheckoutSession{ClientReferenceID: " 7 "}
		assert.Equal(t, "7", s.UserID())
	})

	t.Run("EmptyWhenNeitherSet", func(t *testing.T) {
		s := &CheckoutSession{Metadata: map[string]string{"user_id": "  "}}
		assert.Equal(t, "", s.UserID())
	})
}

func TestSubscriptionEventDecoding(t *testing.T) {
	// Trimmed real-world shape: only the fields the webhook handler reads.
	payload := `{
		"id": "sub_123",
		"customer": "cus_456",
		"status": "active",
		"cancel_at_period_end": true,
		"current_period_start": 1767225600,
		"current_period_end": 1769904000,
		"items": {
			"data": [
				{"price": {"id": "price_trader", "metadata": {}}},
				{"price": {"id": "price_other"}}
			]
		},
		"metadata": {"plan": "trader"}
	}`

	var ev SubscriptionEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))

	assert.Equal(t, "sub_123", ev.ID)
	assert.Equal(t, "cus_456", ev.Customer)
	assert.Equal(t, "active", ev.Status)
	assert.True(t, ev.CancelAtPeriodEnd)
	assert.Equal(t, "price_trader", ev.FirstPriceID())

	start := ev.PeriodStart()
	require.NotNil(t, start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *start)
	end := ev.PeriodEnd()
	require.NotNil(t, end)
	assert.True(t, end.After(*start))
}

func TestSubscriptionEventEmptyFields(t *testing.T) {
	var ev SubscriptionEvent
	assert.Equal(t, "", ev.FirstPriceID())
	assert.Nil(t, ev.PeriodStart())
	assert.Nil(t, ev.PeriodEnd())

	// A blank first item must not shadow a real second one.
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": {"data": [{"price": {"id": " "}}, {"price": {"id": "price_ic"}}]}
	}`), &ev))
	assert.Equal(t, "price_ic", ev.FirstPriceID())
}
