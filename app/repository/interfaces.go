package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// EdgeRepository defines the interface for edge-related database operations
type EdgeRepository interface {
	Create(edge *models.Edge) error
	GetByUUID(uuid string) (*models.Edge, error)
	GetByUserID(userID uint) ([]models.Edge, error)
	CountByUserID(userID uint) (int64, error)
	Update(edge *models.Edge) error
	Delete(id uint) error
}

// JournalRepository covers forward-test and backtest entries and their
// aggregates.
type JournalRepository interface {
	CreateForwardTest(entry *models.ForwardTestEntry) error
	ListForwardTests(userID uint, since *time.Time, limit int) ([]models.ForwardTestEntry, error)
	CreateBacktest(entry *models.BacktestEntry) error
	ListBacktests(userID uint, edgeID uint, limit int) ([]models.BacktestEntry, error)
	EdgeStats(userID uint) ([]EdgeStats, error)
}

// MacroEventRepository defines calendar and tracker operations.
type MacroEventRepository interface {
	Create(event *models.MacroEvent) error
	ListPublic(from, to time.Time) ([]models.MacroEvent, error)
	ListByUserID(userID uint, from, to time.Time) ([]models.MacroEvent, error)
	Delete(id, userID uint) error
}

// EdgeStats is a per-edge aggregate row computed in SQL.
type EdgeStats struct {
	EdgeID     uint    `json:"edge_id"`
	EdgeName   string  `json:"edge_name"`
	TradeCount int64   `json:"trade_count"`
	Wins       int64   `json:"wins"`
	Losses     int64   `json:"losses"`
	Breakevens int64   `json:"breakevens"`
	AvgRR      float64 `json:"avg_rr"`
}

// Repositories bundles all repository instances
type Repositories struct {
	User    UserRepository
	Edge    EdgeRepository
	Journal JournalRepository
	Macro   MacroEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Edge:    NewEdgeRepository(db),
		Journal: NewJournalRepository(db),
		Macro:   NewMacroEventRepository(db),
	}
}
