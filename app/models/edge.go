package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Edge is a trading setup the user tracks: a named, rule-based entry model
// with the sessions and timeframes it applies to.
type Edge struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Name        string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description string         `gorm:"type:text" json:"description" validate:"max=5000"`
	Timeframe   string         `gorm:"type:varchar(20);default:''" json:"timeframe" validate:"max=20"`
	Session     string         `gorm:"type:varchar(50);default:''" json:"session" validate:"max=50"`
	Pairs       string         `gorm:"type:varchar(200);default:''" json:"pairs" validate:"max=200"`
	Archived    bool           `gorm:"default:false;index" json:"archived"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *Edge) Validate() error {
	return validator.New().Struct(e)
}

// BeforeCreate assigns the public UUID.
func (e *Edge) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == "" {
		e.UUID = uuid.New().String()
	}
	return nil
}
