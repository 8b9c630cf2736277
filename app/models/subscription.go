package models

import (
	"time"
)

// Subscription tiers. The paid plans ("trader", "inner_circle") collapse to
// TierPaid for access decisions; the plan name is kept on the record for
// billing display only.
const (
	TierUnpaid = "unpaid"
	TierFree   = "free"
	TierTrial  = "trial"
	TierPaid   = "paid"
)

// Payment provider constants used across subscription-related models.
const (
	PaymentProviderStripe      = "stripe"
	PaymentProviderNowPayments = "nowpayments"
)

// Provider-side payment status vocabulary mirrored into PaymentStatus.
const (
	PaymentStatusWaiting       = "waiting"
	PaymentStatusFinished      = "finished"
	PaymentStatusConfirmed     = "confirmed"
	PaymentStatusPartiallyPaid = "partially_paid"
	PaymentStatusExpired       = "expired"
)

// Paid plan names accepted as checkout targets. "retail" is the free plan
// and is never a valid checkout target.
const (
	PlanRetail      = "retail"
	PlanTrader      = "trader"
	PlanInnerCircle = "inner_circle"
)

// Subscription holds one row per user: tier, trial window, payment linkage
// and billing period bounds. Created lazily on first checkout interaction.
//
// There is no version column; every writer (checkout, webhook, sweep) sets
// absolute target state, so last-write-wins is safe. Any future writer that
// performs a relative update must add optimistic locking first.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Tier                 string     `gorm:"type:varchar(20);not null;default:'free';index" json:"tier"`
	Plan                 string     `gorm:"type:varchar(50);default:''" json:"plan"`
	TrialStartedAt       *time.Time `gorm:"type:timestamp;default:null" json:"trial_started_at,omitempty"`
	TrialEndsAt          *time.Time `gorm:"type:timestamp;default:null" json:"trial_ends_at,omitempty"`
	PaymentProvider      string     `gorm:"type:varchar(20);default:''" json:"payment_provider"`
	PaymentID            string     `gorm:"type:varchar(191);default:''" json:"payment_id"`
	PaymentStatus        string     `gorm:"type:varchar(32);default:''" json:"payment_status"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"-"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"-"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaidPlan reports whether the plan name is a valid paid checkout target.
func IsPaidPlan(plan string) bool {
	switch plan {
	case PlanTrader, PlanInnerCircle:
		return true
	default:
		return false
	}
}
