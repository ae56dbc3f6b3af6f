package records

import (
	"context"

	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
)

// Stats is the aggregate view served by GET /stats.
type Stats struct {
	Total   int64
	Public  int64
	Private int64
}

// Repository persists storage records. One record per dataitem id, written
// at ingestion and never mutated.
type Repository interface {
	// Create inserts the record, assigning its ingestion sequence. When a
	// record for the same id already exists the existing record is
	// returned with created=false (idempotent-by-content placement).
	Create(ctx context.Context, rec *models.StorageRecord) (*models.StorageRecord, bool, error)

	// GetByID returns the record or common.ErrNotFound.
	GetByID(ctx context.Context, dataitemID string) (*models.StorageRecord, error)

	// Stats counts records by visibility.
	Stats(ctx context.Context) (*Stats, error)
}
