package submissions

import (
	"context"

	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
)

// Repository persists migration records: the at-most-once submission state
// of dataitems pushed to permanent storage.
type Repository interface {
	// Get returns the record or common.ErrNotFound.
	Get(ctx context.Context, dataitemID string) (*models.MigrationRecord, error)

	// MarkSubmitted upserts the record into the submitted state with the
	// bundler receipt. A record already submitted is left untouched, so a
	// given id can never hold two distinct receipts.
	MarkSubmitted(ctx context.Context, dataitemID string, receipt []byte, size int64) error

	// MarkFailed upserts the record into the failed (retryable) state.
	// Never downgrades a submitted record.
	MarkFailed(ctx context.Context, dataitemID string, size int64) error

	// CountSubmitted counts successfully submitted records.
	CountSubmitted(ctx context.Context) (int64, error)
}
