package tierpolicy

import (
	"errors"
	"time"

	"github.com/gitwithuli/edgeofict/app/models"
)

// Feature is a gated capability of the journal.
type Feature string

const (
	FeatureDashboard           Feature = "dashboard"
	FeatureForwardTestTracking Feature = "forwardtest-tracking"
	FeatureBacktestLogging     Feature = "backtest-logging"
	FeatureMacroTracker        Feature = "macro-tracker"
	FeatureUnlimitedEdges      Feature = "unlimited-edges"
	FeatureFullHistory         Feature = "full-history"
	FeatureAIParser            Feature = "ai-parser"
)

// ErrAlreadySubscribed signals that a checkout was attempted by a user whose
// record is already paid; callers redirect instead of creating an invoice.
var ErrAlreadySubscribed = errors.New("already subscribed")

// FreeEdgeLimit caps the number of edges a free-tier user may keep. The cap
// is enforced by the edge handlers, not by CanAccess.
const FreeEdgeLimit = 1

// FreeHistoryWindow bounds how far back free-tier forward-test listings reach.
const FreeHistoryWindow = 7 * 24 * time.Hour

// CanAccess answers whether a tier may reach a capability. Unknown features
// and unknown tiers are denied. Callers that failed to load a record must
// pass models.TierFree (fail closed), never models.TierPaid.
func CanAccess(tier string, feature Feature) bool {
	switch feature {
	case FeatureDashboard, FeatureForwardTestTracking:
		// Free tier keeps limited journal access (1 edge, 7-day history,
		// enforced by the handlers).
		switch tier {
		case models.TierFree, models.TierTrial, models.TierPaid:
			return true
		}
		return false
	case FeatureBacktestLogging, FeatureMacroTracker, FeatureUnlimitedEdges, FeatureFullHistory, FeatureAIParser:
		switch tier {
		case models.TierTrial, models.TierPaid:
			return true
		}
		return false
	default:
		return false
	}
}

// NextTier computes the correct tier for a record at the given instant.
// It never upgrades: upgrades only happen via checkout and webhook paths.
// Pure and idempotent; applying it to an already-transitioned record is a
// no-op.
func NextTier(sub *models.Subscription, now time.Time) string {
	if sub == nil {
		return models.TierFree
	}
	switch sub.Tier {
	case models.TierTrial:
		if sub.TrialEndsAt != nil && !sub.TrialEndsAt.After(now) {
			return models.TierFree
		}
	case models.TierPaid:
		if sub.PaymentProvider == models.PaymentProviderNowPayments &&
			sub.CurrentPeriodEnd != nil && !sub.CurrentPeriodEnd.After(now) {
			return models.TierUnpaid
		}
	}
	return sub.Tier
}

// AdmitCryptoCheckout rejects a second crypto checkout for an already-paid
// record with ErrAlreadySubscribed.
func AdmitCryptoCheckout(sub *models.Subscription) error {
	if sub != nil && sub.Tier == models.TierPaid {
		return ErrAlreadySubscribed
	}
	return nil
}
