package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Trade outcomes shared by forward-test and backtest entries.
const (
	OutcomeWin       = "win"
	OutcomeLoss      = "loss"
	OutcomeBreakeven = "breakeven"
)

// ForwardTestEntry records a live (forward-tested) execution of an edge.
type ForwardTestEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	EdgeID     uint           `gorm:"not null;index" json:"edge_id"`
	Pair       string         `gorm:"type:varchar(20);not null" json:"pair" validate:"required,max=20"`
	Outcome    string         `gorm:"type:varchar(20);not null" json:"outcome" validate:"oneof=win loss breakeven"`
	RiskReward float64        `gorm:"type:decimal(8,2);default:0" json:"risk_reward" validate:"gte=-100,lte=1000"`
	Notes      string         `gorm:"type:text" json:"notes" validate:"max=5000"`
	TakenAt    time.Time      `gorm:"not null;index" json:"taken_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (f *ForwardTestEntry) Validate() error {
	return validator.New().Struct(f)
}

// BacktestEntry records a historical (backtested) occurrence of an edge.
type BacktestEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	EdgeID     uint           `gorm:"not null;index" json:"edge_id"`
	Pair       string         `gorm:"type:varchar(20);not null" json:"pair" validate:"required,max=20"`
	Outcome    string         `gorm:"type:varchar(20);not null" json:"outcome" validate:"oneof=win loss breakeven"`
	RiskReward float64        `gorm:"type:decimal(8,2);default:0" json:"risk_reward" validate:"gte=-100,lte=1000"`
	Notes      string         `gorm:"type:text" json:"notes" validate:"max=5000"`
	OccurredOn time.Time      `gorm:"not null;index" json:"occurred_on"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *BacktestEntry) Validate() error {
	return validator.New().Struct(b)
}
