package tierpolicy

import (
	"errors"
	"testing"
	"time"

	"github.com/gitwithuli/edgeofict/app/models"
)

func TestCanAccess_Matrix(t *testing.T) {
	tests := []struct {
		tier    string
		feature Feature
		want    bool
	}{
		{models.TierFree, FeatureForwardTestTracking, true},
		{models.TierTrial, FeatureForwardTestTracking, true},
		{models.TierPaid, FeatureForwardTestTracking, true},
		{models.TierUnpaid, FeatureForwardTestTracking, false},

		{models.TierFree, FeatureBacktestLogging, false},
		{models.TierUnpaid, FeatureBacktestLogging, false},
		{models.TierTrial, FeatureBacktestLogging, true},
		{models.TierPaid, FeatureBacktestLogging, true},

		{models.TierFree, FeatureMacroTracker, false},
		{models.TierPaid, FeatureMacroTracker, true},
		{models.TierFree, FeatureUnlimitedEdges, false},
		{models.TierTrial, FeatureUnlimitedEdges, true},
		{models.TierFree, FeatureFullHistory, false},
		{models.TierPaid, FeatureFullHistory, true},
		{models.TierFree, FeatureAIParser, false},
		{models.TierPaid, FeatureAIParser, true},

		{models.TierFree, FeatureDashboard, true},
		{models.TierTrial, FeatureDashboard, true},
		{models.TierPaid, FeatureDashboard, true},
		{models.TierUnpaid, FeatureDashboard, false},

		// Unknown tiers and features are denied.
		{"premium", FeatureBacktestLogging, false},
		{models.TierPaid, Feature("does-not-exist"), false},
		{"", FeatureDashboard, false},
	}

	for _, tt := range tests {
		if got := CanAccess(tt.tier, tt.feature); got != tt.want {
			t.Fatalf("CanAccess(%q, %q) = %v, want %v", tt.tier, tt.feature, got, tt.want)
		}
	}
}

func TestCanAccess_FailClosedMatchesFree(t *testing.T) {
	// A caller that cannot load a record substitutes TierFree. Every feature
	// decision for that substitute must match the real free tier.
	features := []Feature{
		FeatureDashboard,
		FeatureForwardTestTracking,
		FeatureBacktestLogging,
		FeatureMacroTracker,
		FeatureUnlimitedEdges,
		FeatureFullHistory,
		FeatureAIParser,
	}
	for _, f := range features {
		if CanAccess(models.TierFree, f) != CanAccess("free", f) {
			t.Fatalf("fail-closed substitute diverges for feature %q", f)
		}
		if CanAccess(models.TierFree, f) && f != FeatureDashboard && f != FeatureForwardTestTracking {
			t.Fatalf("free tier must not reach premium feature %q", f)
		}
	}
}

func TestNextTier_TrialExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := &models.Subscription{Tier: models.TierTrial, TrialEndsAt: &past}
	if got := NextTier(expired, now); got != models.TierFree {
		t.Fatalf("expired trial: got %q, want free", got)
	}

	active := &models.Subscription{Tier: models.TierTrial, TrialEndsAt: &future}
	if got := NextTier(active, now); got != models.TierTrial {
		t.Fatalf("active trial: got %q, want trial", got)
	}

	// Boundary: trialEndsAt == now counts as expired.
	edge := &models.Subscription{Tier: models.TierTrial, TrialEndsAt: &now}
	if got := NextTier(edge, now); got != models.TierFree {
		t.Fatalf("boundary trial: got %q, want free", got)
	}
}

func TestNextTier_CryptoPeriodExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	lapsed := &models.Subscription{
		Tier:             models.TierPaid,
		PaymentProvider:  models.PaymentProviderNowPayments,
		CurrentPeriodEnd: &past,
	}
	if got := NextTier(lapsed, now); got != models.TierUnpaid {
		t.Fatalf("lapsed crypto: got %q, want unpaid", got)
	}

	current := &models.Subscription{
		Tier:             models.TierPaid,
		PaymentProvider:  models.PaymentProviderNowPayments,
		CurrentPeriodEnd: &future,
	}
	if got := NextTier(current, now); got != models.TierPaid {
		t.Fatalf("current crypto: got %q, want paid", got)
	}

	// Stripe-managed subscriptions are never lapsed by period end locally.
	stripePaid := &models.Subscription{
		Tier:             models.TierPaid,
		PaymentProvider:  models.PaymentProviderStripe,
		CurrentPeriodEnd: &past,
	}
	if got := NextTier(stripePaid, now); got != models.TierPaid {
		t.Fatalf("stripe paid: got %q, want paid", got)
	}
}

func TestNextTier_Idempotent(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	sub := &models.Subscription{Tier: models.TierTrial, TrialEndsAt: &past}
	first := NextTier(sub, now)
	sub.Tier = first
	if second := NextTier(sub, now); second != first {
		t.Fatalf("NextTier not idempotent: first %q, second %q", first, second)
	}

	// No silent upgrades from free or unpaid.
	for _, tier := range []string{models.TierFree, models.TierUnpaid} {
		sub := &models.Subscription{Tier: tier}
		if got := NextTier(sub, now); got != tier {
			t.Fatalf("tier %q changed to %q without a checkout path", tier, got)
		}
	}
}

func TestAdmitCryptoCheckout(t *testing.T) {
	if err := AdmitCryptoCheckout(&models.Subscription{Tier: models.TierPaid}); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
	for _, tier := range []string{models.TierFree, models.TierTrial, models.TierUnpaid} {
		if err := AdmitCryptoCheckout(&models.Subscription{Tier: tier}); err != nil {
			t.Fatalf("tier %q unexpectedly rejected: %v", tier, err)
		}
	}
	if err := AdmitCryptoCheckout(nil); err != nil {
		t.Fatalf("nil record unexpectedly rejected: %v", err)
	}
}
