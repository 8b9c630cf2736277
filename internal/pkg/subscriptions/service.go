package subscriptions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
)

const (
	trialDuration        = 7 * 24 * time.Hour
	cryptoPeriodDuration = 30 * 24 * time.Hour
)

// Service owns every write path into the subscription record: checkout,
// webhook reconciliation and the scheduled sweep. All writes set absolute
// target state so provider redeliveries and sweep races stay idempotent.
type Service struct {
	repo Repository
}

// NewService creates a subscription service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// SweepResult reports how many records each transition category touched.
// Which records moved is deliberately not reported; identities stay out of
// logs and metrics.
type SweepResult struct {
	ExpiredTrials int64     `json:"expiredTrials"`
	ExpiredCrypto int64     `json:"expiredCrypto"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// RecordOrFree reads the caller's record, substituting the free tier when
// the record is missing or the store read fails. An outage must never grant
// premium access, so the fallback is always the minimal authenticated tier.
func (s *Service) RecordOrFree(ctx context.Context, userID uint) (string, *models.Subscription) {
	_ = ctx
	sub, err := s.repo.GetByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("subscription lookup failed for user %d, treating as free: %v", userID, err)
		}
		return models.TierFree, nil
	}
	return sub.Tier, sub
}

// Record returns the caller's record without the fail-closed substitution.
func (s *Service) Record(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	return s.repo.GetByUserID(userID)
}

// StartTrial upserts a trial record with a 7-day window. The trial window is
// set once; a user who already consumed a trial keeps the original bounds.
func (s *Service) StartTrial(ctx context.Context, userID uint, plan string) (*models.Subscription, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	now := time.Now().UTC()
	ends := now.Add(trialDuration)

	sub, err := s.repo.GetByUserID(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if sub == nil {
		sub = &models.Subscription{UserID: userID}
	}
	if sub.Tier == models.TierPaid {
		return sub, tierpolicy.ErrAlreadySubscribed
	}
	if sub.TrialStartedAt == nil {
		sub.TrialStartedAt = &now
		sub.TrialEndsAt = &ends
	}
	if sub.TrialEndsAt != nil && sub.TrialEndsAt.After(now) {
		sub.Tier = models.TierTrial
	}
	sub.Plan = plan

	if err := s.repo.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// paidCryptoStatus reports whether a provider payment status grants
// entitlement. partially_paid is accepted as network-fee underpayment
// tolerance.
func paidCryptoStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.PaymentStatusFinished, models.PaymentStatusConfirmed, models.PaymentStatusPartiallyPaid:
		return true
	default:
		return false
	}
}

// ApplyCryptoPayment applies an externally-verified crypto payment event.
// Entitling statuses upgrade to paid with a fresh 30-day period; any other
// status is mirrored onto the record without a tier change. Re-applying the
// same payment is a no-op, so redelivered events do not advance the period.
func (s *Service) ApplyCryptoPayment(ctx context.Context, userID uint, paymentID, status string, now time.Time) (*models.Subscription, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	sub, err := s.repo.GetByUserID(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if sub == nil {
		sub = &models.Subscription{UserID: userID, Tier: models.TierFree}
	}

	status = strings.ToLower(strings.TrimSpace(status))

	if paidCryptoStatus(status) {
		// Redelivery guard: the same payment never extends the period twice.
		if sub.Tier == models.TierPaid && sub.PaymentID == paymentID && paidCryptoStatus(sub.PaymentStatus) {
			sub.PaymentStatus = status
			if err := s.repo.Upsert(sub); err != nil {
				return nil, err
			}
			return sub, nil
		}
		start := now.UTC()
		end := start.Add(cryptoPeriodDuration)
		sub.Tier = models.TierPaid
		sub.PaymentProvider = models.PaymentProviderNowPayments
		sub.PaymentID = paymentID
		sub.PaymentStatus = status
		sub.CurrentPeriodStart = &start
		sub.CurrentPeriodEnd = &end
	} else {
		sub.PaymentProvider = models.PaymentProviderNowPayments
		sub.PaymentID = paymentID
		sub.PaymentStatus = status
	}

	if err := s.repo.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplyStripeCheckout stores the customer/subscription references from a
// completed checkout session and sets the tier from session metadata.
func (s *Service) ApplyStripeCheckout(ctx context.Context, userID uint, customerID, subscriptionID, plan string) (*models.Subscription, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	sub, err := s.repo.GetByUserID(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if sub == nil {
		sub = &models.Subscription{UserID: userID}
	}

	sub.Tier = models.TierPaid
	sub.Plan = plan
	sub.PaymentProvider = models.PaymentProviderStripe
	sub.StripeCustomerID = strings.TrimSpace(customerID)
	sub.StripeSubscriptionID = strings.TrimSpace(subscriptionID)
	sub.PaymentID = strings.TrimSpace(subscriptionID)
	sub.PaymentStatus = "active"

	if err := s.repo.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplyStripeSubscriptionUpdate recomputes the record from a subscription
// event. The plan is resolved upstream from the explicit price mapping; an
// empty plan means the price is unknown and the tier is left alone.
func (s *Service) ApplyStripeSubscriptionUpdate(ctx context.Context, customerID, subscriptionID, plan, status string, cancelAtPeriodEnd bool, periodStart, periodEnd *time.Time) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.repo.GetByStripeCustomerID(customerID)
	if err != nil {
		return nil, err
	}

	sub.StripeSubscriptionID = strings.TrimSpace(subscriptionID)
	sub.PaymentID = strings.TrimSpace(subscriptionID)
	sub.PaymentStatus = strings.ToLower(strings.TrimSpace(status))
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd
	sub.CurrentPeriodStart = periodStart
	sub.CurrentPeriodEnd = periodEnd

	switch sub.PaymentStatus {
	case "active", "trialing", "past_due":
		if plan != "" {
			sub.Tier = models.TierPaid
			sub.Plan = plan
		}
	case "canceled", "unpaid", "incomplete_expired":
		sub.Tier = models.TierFree
	}

	if err := s.repo.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplyStripeSubscriptionDeleted downgrades to the base authenticated tier.
// History fields (payment id, trial bounds) are audit breadcrumbs and stay.
func (s *Service) ApplyStripeSubscriptionDeleted(ctx context.Context, customerID string) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.repo.GetByStripeCustomerID(customerID)
	if err != nil {
		return nil, err
	}

	sub.Tier = models.TierFree
	sub.PaymentStatus = "canceled"
	sub.CancelAtPeriodEnd = false

	if err := s.repo.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Sweep applies the time-based transitions in bulk. Safe to invoke
// repeatedly and concurrently with webhook delivery: both updates match the
// pre-transition tier, so an already-transitioned record is not touched.
func (s *Service) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	_ = ctx
	trials, err := s.repo.ExpireTrials(now)
	if err != nil {
		return nil, err
	}
	crypto, err := s.repo.ExpireCryptoPeriods(now)
	if err != nil {
		return nil, err
	}
	return &SweepResult{
		ExpiredTrials: trials,
		ExpiredCrypto: crypto,
		CheckedAt:     now.UTC(),
	}, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
