// Package records provides the PostgreSQL-backed repository for storage
// records, the binding between a dataitem id and its temporal location.
package records

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

// Create inserts the record with ON CONFLICT DO NOTHING so two concurrent
// ingestions of byte-identical content converge to a single row. The loser
// reads back the winner's row and reports created=false.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.StorageRecord) (*models.StorageRecord, bool, error) {
	query := `
		INSERT INTO storage_records (dataitem_id, visibility, bucket, storage_key, name, folder, content_type, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dataitem_id) DO NOTHING
		RETURNING seq, created_at;
	`
	row := r.db.QueryRowContext(ctx, query,
		rec.DataitemID, rec.Visibility, rec.Bucket, rec.StorageKey, rec.Name, rec.Folder, rec.ContentType, rec.Size)

	err := row.Scan(&rec.Seq, &rec.CreatedAt)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	existing, err := r.GetByID(ctx, rec.DataitemID)
	if err != nil {
		return nil, false, fmt.Errorf("conflicting record lookup: %w", err)
	}
	return existing, false, nil
}

// GetByID returns the storage record for a dataitem id.
func (r *PostgresRepository) GetByID(ctx context.Context, dataitemID string) (*models.StorageRecord, error) {
	query := `
		SELECT seq, dataitem_id, visibility, bucket, storage_key, name, folder, content_type, size, created_at
		FROM storage_records
		WHERE dataitem_id = $1;
	`
	var rec models.StorageRecord
	err := r.db.QueryRowContext(ctx, query, dataitemID).Scan(
		&rec.Seq, &rec.DataitemID, &rec.Visibility, &rec.Bucket, &rec.StorageKey,
		&rec.Name, &rec.Folder, &rec.ContentType, &rec.Size, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

// Stats counts stored records by visibility.
func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE visibility = 'public'),
		       count(*) FILTER (WHERE visibility = 'private')
		FROM storage_records;
	`
	var s Stats
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Public, &s.Private); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}
