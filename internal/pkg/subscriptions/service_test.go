package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
)

// fakeRepository keeps records in memory and mirrors the conditional WHERE
// semantics of the GORM repository.
type fakeRepository struct {
	byUser map[uint]*models.Subscription
	events map[string]*models.WebhookEvent
	nextID uint
	err    error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byUser: make(map[uint]*models.Subscription),
		events: make(map[string]*models.WebhookEvent),
	}
}

func (f *fakeRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.byUser[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepository) GetByStripeCustomerID(customerID string) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, sub := range f.byUser {
		if sub.StripeCustomerID == customerID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) Upsert(sub *models.Subscription) error {
	if f.err != nil {
		return f.err
	}
	if existing, ok := f.byUser[sub.UserID]; ok {
		sub.ID = existing.ID
	} else {
		f.nextID++
		sub.ID = f.nextID
	}
	cp := *sub
	f.byUser[sub.UserID] = &cp
	return nil
}

func (f *fakeRepository) ExpireTrials(now time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, sub := range f.byUser {
		if sub.Tier == models.TierTrial && sub.TrialEndsAt != nil && !sub.TrialEndsAt.After(now) {
			sub.Tier = models.TierFree
			n++
		}
	}
	return n, nil
}

func (f *fakeRepository) ExpireCryptoPeriods(now time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, sub := range f.byUser {
		if sub.Tier == models.TierPaid && sub.PaymentProvider == models.PaymentProviderNowPayments &&
			sub.CurrentPeriodEnd != nil && !sub.CurrentPeriodEnd.After(now) {
			sub.Tier = models.TierUnpaid
			sub.PaymentStatus = models.PaymentStatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if f.err != nil {
		return false, nil, f.err
	}
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := f.events[key]; ok {
		return false, stored, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.events[key] = event
	return true, event, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	if f.err != nil {
		return f.err
	}
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func TestSweep_Transitions(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	repo.byUser[1] = &models.Subscription{UserID: 1, Tier: models.TierTrial, TrialEndsAt: &past}
	repo.byUser[2] = &models.Subscription{UserID: 2, Tier: models.TierTrial, TrialEndsAt: &future}
	repo.byUser[3] = &models.Subscription{
		UserID: 3, Tier: models.TierPaid,
		PaymentProvider: models.PaymentProviderNowPayments, CurrentPeriodEnd: &past,
	}
	repo.byUser[4] = &models.Subscription{
		UserID: 4, Tier: models.TierPaid,
		PaymentProvider: models.PaymentProviderStripe, CurrentPeriodEnd: &past,
	}

	res, err := svc.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if res.ExpiredTrials != 1 || res.ExpiredCrypto != 1 {
		t.Fatalf("unexpected counts: trials=%d crypto=%d", res.ExpiredTrials, res.ExpiredCrypto)
	}

	if repo.byUser[1].Tier != models.TierFree {
		t.Fatalf("expired trial not downgraded: %q", repo.byUser[1].Tier)
	}
	if repo.byUser[1].TrialEndsAt == nil || !repo.byUser[1].TrialEndsAt.Equal(past) {
		t.Fatalf("trial history field mutated by sweep")
	}
	if repo.byUser[2].Tier != models.TierTrial {
		t.Fatalf("active trial touched by sweep")
	}
	if repo.byUser[3].Tier != models.TierUnpaid || repo.byUser[3].PaymentStatus != models.PaymentStatusExpired {
		t.Fatalf("lapsed crypto not expired: tier=%q status=%q", repo.byUser[3].Tier, repo.byUser[3].PaymentStatus)
	}
	if repo.byUser[4].Tier != models.TierPaid {
		t.Fatalf("stripe-managed record expired by sweep")
	}
}

func TestSweep_Idempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	repo.byUser[1] = &models.Subscription{UserID: 1, Tier: models.TierTrial, TrialEndsAt: &past}
	repo.byUser[2] = &models.Subscription{
		UserID: 2, Tier: models.TierPaid,
		PaymentProvider: models.PaymentProviderNowPayments, CurrentPeriodEnd: &past,
	}

	first, err := svc.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if first.ExpiredTrials != 1 || first.ExpiredCrypto != 1 {
		t.Fatalf("first sweep counts wrong: %+v", first)
	}

	second, err := svc.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if second.ExpiredTrials != 0 || second.ExpiredCrypto != 0 {
		t.Fatalf("second sweep re-applied transitions: %+v", second)
	}
}

func TestRecordOrFree_FailClosed(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	// Missing record: free.
	tier, sub := svc.RecordOrFree(ctx, 42)
	if tier != models.TierFree || sub != nil {
		t.Fatalf("missing record: got tier=%q sub=%v", tier, sub)
	}

	// Store error: still free, never paid.
	repo.err = errors.New("connection refused")
	tier, sub = svc.RecordOrFree(ctx, 42)
	if tier != models.TierFree || sub != nil {
		t.Fatalf("store error: got tier=%q sub=%v", tier, sub)
	}
}

func TestApplyCryptoPayment_Idempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	sub, err := svc.ApplyCryptoPayment(ctx, 7, "pay_123", models.PaymentStatusFinished, t0)
	if err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if sub.Tier != models.TierPaid {
		t.Fatalf("expected paid tier, got %q", sub.Tier)
	}
	firstEnd := *sub.CurrentPeriodEnd

	// Redelivery an hour later must not advance the period.
	again, err := svc.ApplyCryptoPayment(ctx, 7, "pay_123", models.PaymentStatusFinished, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if !again.CurrentPeriodEnd.Equal(firstEnd) {
		t.Fatalf("redelivery advanced period end: %v -> %v", firstEnd, again.CurrentPeriodEnd)
	}

	// A genuinely new payment does extend.
	renewed, err := svc.ApplyCryptoPayment(ctx, 7, "pay_456", models.PaymentStatusConfirmed, t0.Add(25*24*time.Hour))
	if err != nil {
		t.Fatalf("renewal failed: %v", err)
	}
	if !renewed.CurrentPeriodEnd.After(firstEnd) {
		t.Fatalf("renewal did not extend period")
	}
}

func TestApplyCryptoPayment_NonEntitlingStatusMirrorsOnly(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()
	now := time.Now()

	sub, err := svc.ApplyCryptoPayment(ctx, 9, "pay_w", models.PaymentStatusWaiting, now)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if sub.Tier != models.TierFree {
		t.Fatalf("waiting status changed tier to %q", sub.Tier)
	}
	if sub.PaymentStatus != models.PaymentStatusWaiting {
		t.Fatalf("status not mirrored: %q", sub.PaymentStatus)
	}
}

func TestStartTrial(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	sub, err := svc.StartTrial(ctx, 5, models.PlanTrader)
	if err != nil {
		t.Fatalf("start trial failed: %v", err)
	}
	if sub.Tier != models.TierTrial || sub.TrialEndsAt == nil {
		t.Fatalf("trial not started: tier=%q", sub.Tier)
	}
	firstEnds := *sub.TrialEndsAt

	// Second call keeps the original window.
	sub, err = svc.StartTrial(ctx, 5, models.PlanTrader)
	if err != nil {
		t.Fatalf("second start trial failed: %v", err)
	}
	if !sub.TrialEndsAt.Equal(firstEnds) {
		t.Fatalf("trial window mutated on repeat checkout")
	}

	// Already-paid users are rejected with the admission signal.
	repo.byUser[6] = &models.Subscription{UserID: 6, Tier: models.TierPaid}
	if _, err := svc.StartTrial(ctx, 6, models.PlanTrader); !errors.Is(err, tierpolicy.ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
}

func TestApplyStripeSubscriptionDeleted_KeepsHistory(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()
	started := time.Now().Add(-40 * 24 * time.Hour)

	repo.byUser[8] = &models.Subscription{
		UserID: 8, Tier: models.TierPaid,
		PaymentProvider:  models.PaymentProviderStripe,
		PaymentID:        "sub_abc",
		StripeCustomerID: "cus_abc",
		TrialStartedAt:   &started,
	}

	sub, err := svc.ApplyStripeSubscriptionDeleted(ctx, "cus_abc")
	if err != nil {
		t.Fatalf("deletion apply failed: %v", err)
	}
	if sub.Tier != models.TierFree {
		t.Fatalf("expected free after deletion, got %q", sub.Tier)
	}
	if sub.PaymentID != "sub_abc" || sub.TrialStartedAt == nil {
		t.Fatalf("downgrade cleared audit history fields")
	}
}

func TestRecordWebhookEvent_Deduplicates(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:        models.PaymentProviderNowPayments,
		ProviderEventID: "evt_1",
		EventType:       "payment",
		PayloadJSON:     `{"payment_status":"finished"}`,
		SignatureValid:  true,
	}

	created, _, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil || !created {
		t.Fatalf("first record: created=%v err=%v", created, err)
	}
	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}
	if created {
		t.Fatalf("duplicate event reported as created")
	}
	if stored == nil || stored.ProviderEventID != "evt_1" {
		t.Fatalf("stored event not returned on duplicate")
	}
}
