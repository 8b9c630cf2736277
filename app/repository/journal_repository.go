package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
)

// journalRepository implements the JournalRepository interface
type journalRepository struct {
	db *gorm.DB
}

// NewJournalRepository creates a new journal repository instance
func NewJournalRepository(db *gorm.DB) JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) CreateForwardTest(entry *models.ForwardTestEntry) error {
	return r.db.Create(entry).Error
}

// ListForwardTests returns the user's forward tests newest first. A non-nil
// since bounds the history window (free tier gets 7 days).
func (r *journalRepository) ListForwardTests(userID uint, since *time.Time, limit int) ([]models.ForwardTestEntry, error) {
	q := r.db.Where("user_id = ?", userID)
	if since != nil {
		q = q.Where("taken_at >= ?", *since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.ForwardTestEntry
	err := q.Order("taken_at DESC").Find(&entries).Error
	return entries, err
}

func (r *journalRepository) CreateBacktest(entry *models.BacktestEntry) error {
	return r.db.Create(entry).Error
}

func (r *journalRepository) ListBacktests(userID uint, edgeID uint, limit int) ([]models.BacktestEntry, error) {
	q := r.db.Where("user_id = ?", userID)
	if edgeID != 0 {
		q = q.Where("edge_id = ?", edgeID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.BacktestEntry
	err := q.Order("occurred_on DESC").Find(&entries).Error
	return entries, err
}

// EdgeStats aggregates forward-test outcomes per edge in a single query.
func (r *journalRepository) EdgeStats(userID uint) ([]EdgeStats, error) {
	var stats []EdgeStats
	err := r.db.Model(&models.ForwardTestEntry{}).
		Select(`edges.id AS edge_id,
			edges.name AS edge_name,
			COUNT(forward_test_entries.id) AS trade_count,
			COUNT(*) FILTER (WHERE forward_test_entries.outcome = 'win') AS wins,
			COUNT(*) FILTER (WHERE forward_test_entries.outcome = 'loss') AS losses,
			COUNT(*) FILTER (WHERE forward_test_entries.outcome = 'breakeven') AS breakevens,
			COALESCE(AVG(forward_test_entries.risk_reward), 0) AS avg_rr`).
		Joins("JOIN edges ON edges.id = forward_test_entries.edge_id").
		Where("forward_test_entries.user_id = ? AND forward_test_entries.deleted_at IS NULL", userID).
		Group("edges.id, edges.name").
		Order("trade_count DESC").
		Scan(&stats).Error
	return stats, err
}
