package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
)

// macroEventRepository implements the MacroEventRepository interface
type macroEventRepository struct {
	db *gorm.DB
}

// NewMacroEventRepository creates a new macro event repository instance
func NewMacroEventRepository(db *gorm.DB) MacroEventRepository {
	return &macroEventRepository{db: db}
}

func (r *macroEventRepository) Create(event *models.MacroEvent) error {
	return r.db.Create(event).Error
}

// ListPublic returns shared calendar rows (user_id = 0) in the window.
func (r *macroEventRepository) ListPublic(from, to time.Time) ([]models.MacroEvent, error) {
	var events []models.MacroEvent
	err := r.db.Where("user_id = 0 AND event_at BETWEEN ? AND ?", from, to).
		Order("event_at ASC").Find(&events).Error
	return events, err
}

func (r *macroEventRepository) ListByUserID(userID uint, from, to time.Time) ([]models.MacroEvent, error) {
	var events []models.MacroEvent
	err := r.db.Where("user_id = ? AND event_at BETWEEN ? AND ?", userID, from, to).
		Order("event_at ASC").Find(&events).Error
	return events, err
}

func (r *macroEventRepository) Delete(id, userID uint) error {
	return r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.MacroEvent{}).Error
}
