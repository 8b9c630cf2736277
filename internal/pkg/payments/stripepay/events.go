package stripepay

import (
	"strings"
	"time"
)

// CheckoutSession is a minimal representation of a Stripe
// checkout.session.completed event payload.
type CheckoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// UserID returns the internal user id stashed in the session metadata,
// falling back to the client reference.
func (s *CheckoutSession) UserID() string {
	if v := strings.TrimSpace(s.Metadata["user_id"]); v != "" {
		return v
	}
	return strings.TrimSpace(s.ClientReferenceID)
}

// SubscriptionEvent is a minimal representation of a Stripe subscription
// event payload.
type SubscriptionEvent struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID       string            `json:"id"`
				Metadata map[string]string `json:"metadata"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// FirstPriceID returns the price ID from the first subscription item.
func (s *SubscriptionEvent) FirstPriceID() string {
	for _, item := range s.Items.Data {
		if priceID := strings.TrimSpace(item.Price.ID); priceID != "" {
			return priceID
		}
	}
	return ""
}

// PeriodStart converts the event's period start to a time, nil when unset.
func (s *SubscriptionEvent) PeriodStart() *time.Time {
	return unixTime(s.CurrentPeriodStart)
}

// PeriodEnd converts the event's period end to a time, nil when unset.
func (s *SubscriptionEvent) PeriodEnd() *time.Time {
	return unixTime(s.CurrentPeriodEnd)
}

func unixTime(v int64) *time.Time {
	if v <= 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
