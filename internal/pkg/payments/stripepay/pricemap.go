package stripepay

import (
	"fmt"
	"strings"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/internal/pkg/env"
)

// PriceMap is the explicit price-identifier to plan mapping, maintained
// alongside pricing configuration and validated at startup. Deriving the
// plan from substrings of the price id couples code to pricing copy; the
// map keeps that coupling in configuration where it belongs.
type PriceMap struct {
	prices map[string]string
}

// NewPriceMapFromEnv reads STRIPE_PRICE_TRADER and STRIPE_PRICE_INNER_CIRCLE.
// When Stripe is configured both must be present; a half-configured map is a
// startup error, not a runtime surprise.
func NewPriceMapFromEnv() (*PriceMap, error) {
	trader := strings.TrimSpace(env.GetEnv("STRIPE_PRICE_TRADER", ""))
	inner := strings.TrimSpace(env.GetEnv("STRIPE_PRICE_INNER_CIRCLE", ""))

	if trader == "" && inner == "" {
		return &PriceMap{prices: map[string]string{}}, nil
	}
	if trader == "" || inner == "" {
		return nil, fmt.Errorf("incomplete stripe price mapping: STRIPE_PRICE_TRADER and STRIPE_PRICE_INNER_CIRCLE must both be set")
	}
	if trader == inner {
		return nil, fmt.Errorf("stripe price mapping assigns the same price id to both plans")
	}

	return &PriceMap{prices: map[string]string{
		trader: models.PlanTrader,
		inner:  models.PlanInnerCircle,
	}}, nil
}

// PlanForPrice resolves a price id to a plan name.
func (m *PriceMap) PlanForPrice(priceID string) (string, bool) {
	plan, ok := m.prices[strings.TrimSpace(priceID)]
	return plan, ok
}

// PriceForPlan resolves a plan name to its price id.
func (m *PriceMap) PriceForPlan(plan string) (string, bool) {
	for price, p := range m.prices {
		if p == plan {
			return price, true
		}
	}
	return "", false
}

// Empty reports whether no mapping is configured.
func (m *PriceMap) Empty() bool {
	return len(m.prices) == 0
}
