package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/app/repository"
)

// JournalExport is the serialized snapshot of one user's journal.
type JournalExport struct {
	UserID       uint                      `json:"user_id"`
	ExportedAt   time.Time                 `json:"exported_at"`
	Edges        []models.Edge             `json:"edges"`
	ForwardTests []models.ForwardTestEntry `json:"forward_tests"`
	Backtests    []models.BacktestEntry    `json:"backtests"`
}

// Exporter builds journal snapshots and ships them to S3.
type Exporter struct {
	repos  *repository.Repositories
	client *Client
	config *Config
}

// NewExporter wires an exporter from the repository bundle and a connected
// backup client.
func NewExporter(repos *repository.Repositories, client *Client, config *Config) *Exporter {
	return &Exporter{repos: repos, client: client, config: config}
}

// Snapshot collects the user's complete journal into an export document.
func (e *Exporter) Snapshot(userID uint, at time.Time) (*JournalExport, error) {
	edges, err := e.repos.Edge.GetByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("collect edges: %w", err)
	}
	forward, err := e.repos.Journal.ListForwardTests(userID, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("collect forward tests: %w", err)
	}
	back, err := e.repos.Journal.ListBacktests(userID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("collect backtests: %w", err)
	}

	return &JournalExport{
		UserID:       userID,
		ExportedAt:   at,
		Edges:        edges,
		ForwardTests: forward,
		Backtests:    back,
	}, nil
}

// Export snapshots the user's journal and uploads it. Returns the object key
// written.
func (e *Exporter) Export(ctx context.Context, userID uint) (string, error) {
	now := time.Now()
	snapshot, err := e.Snapshot(userID, now)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	key := e.config.GetObjectKey(userID, now)
	if _, err := e.client.UploadJSON(ctx, key, body); err != nil {
		return "", err
	}
	return key, nil
}
