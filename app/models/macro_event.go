package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Macro event impact levels as published on the shared calendar.
const (
	ImpactLow    = "low"
	ImpactMedium = "medium"
	ImpactHigh   = "high"
)

// MacroEvent is an economic-calendar entry. Rows with UserID = 0 belong to
// the shared public calendar; user-owned rows are private tracker notes.
type MacroEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;default:0" json:"user_id"`
	Title     string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Currency  string    `gorm:"type:varchar(10);not null" json:"currency" validate:"required,max=10"`
	Impact    string    `gorm:"type:varchar(10);not null;default:'low'" json:"impact" validate:"oneof=low medium high"`
	Notes     string    `gorm:"type:text" json:"notes" validate:"max=5000"`
	EventAt   time.Time `gorm:"not null;index" json:"event_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *MacroEvent) Validate() error {
	return validator.New().Struct(m)
}

// IsPublic reports whether the event belongs to the shared calendar.
func (m *MacroEvent) IsPublic() bool {
	return m.UserID == 0
}
