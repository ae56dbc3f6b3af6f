// Package submissions provides the PostgreSQL-backed repository for
// migration records.
package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
	"github.com/loadnetwork/load-s3-agent/internal/common"
	"github.com/loadnetwork/load-s3-agent/internal/dbx"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, dataitemID string) (*models.MigrationRecord, error) {
	query := `
		SELECT dataitem_id, state, receipt, size, updated_at
		FROM migration_records
		WHERE dataitem_id = $1;
	`
	var rec models.MigrationRecord
	err := r.db.QueryRowContext(ctx, query, dataitemID).Scan(
		&rec.DataitemID, &rec.State, &rec.Receipt, &rec.Size, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

// MarkSubmitted records the successful submission. The WHERE guard on the
// conflict update keeps an already-submitted row (and its receipt) intact.
func (r *PostgresRepository) MarkSubmitted(ctx context.Context, dataitemID string, receipt []byte, size int64) error {
	query := `
		INSERT INTO migration_records (dataitem_id, state, receipt, size, updated_at)
		VALUES ($1, 'submitted', $2, $3, now())
		ON CONFLICT (dataitem_id)
		DO UPDATE SET state = 'submitted', receipt = EXCLUDED.receipt, size = EXCLUDED.size, updated_at = now()
			WHERE migration_records.state <> 'submitted';
	`
	if _, err := r.db.ExecContext(ctx, query, dataitemID, receipt, size); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt; the row stays retryable.
func (r *PostgresRepository) MarkFailed(ctx context.Context, dataitemID string, size int64) error {
	query := `
		INSERT INTO migration_records (dataitem_id, state, size, updated_at)
		VALUES ($1, 'failed', $2, now())
		ON CONFLICT (dataitem_id)
		DO UPDATE SET state = 'failed', size = EXCLUDED.size, updated_at = now()
			WHERE migration_records.state <> 'submitted';
	`
	if _, err := r.db.ExecContext(ctx, query, dataitemID, size); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountSubmitted(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM migration_records WHERE state = 'submitted';`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
