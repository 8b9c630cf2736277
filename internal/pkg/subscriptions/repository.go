package subscriptions

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gitwithuli/edgeofict/app/models"
)

// Repository provides DB operations used by the subscription service.
type Repository interface {
	GetByUserID(userID uint) (*models.Subscription, error)
	GetByStripeCustomerID(customerID string) (*models.Subscription, error)
	Upsert(sub *models.Subscription) error
	ExpireTrials(now time.Time) (int64, error)
	ExpireCryptoPeriods(now time.Time) (int64, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetByStripeCustomerID(customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("stripe_customer_id = ?", customerID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Upsert(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tier",
			"plan",
			"trial_started_at",
			"trial_ends_at",
			"payment_provider",
			"payment_id",
			"payment_status",
			"stripe_customer_id",
			"stripe_subscription_id",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

// ExpireTrials transitions lapsed trials to free. The pre-transition tier in
// the WHERE clause makes concurrent invocations and webhook races no-ops.
func (r *gormRepository) ExpireTrials(now time.Time) (int64, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("tier = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?", models.TierTrial, now).
		Updates(map[string]interface{}{"tier": models.TierFree})
	return tx.RowsAffected, tx.Error
}

// ExpireCryptoPeriods transitions lapsed crypto entitlements to unpaid.
func (r *gormRepository) ExpireCryptoPeriods(now time.Time) (int64, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("tier = ? AND payment_provider = ? AND current_period_end IS NOT NULL AND current_period_end <= ?",
			models.TierPaid, models.PaymentProviderNowPayments, now).
		Updates(map[string]interface{}{
			"tier":           models.TierUnpaid,
			"payment_status": models.PaymentStatusExpired,
		})
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
