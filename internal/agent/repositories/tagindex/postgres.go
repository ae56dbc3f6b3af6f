// Package tagindex provides the PostgreSQL-backed inverted tag index and
// its keyset-paginated intersection query.
package tagindex

import (
	"context"
	"fmt"
	"strings"

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

// Index inserts one row per normalized pair. ON CONFLICT DO NOTHING makes
// the append idempotent by (id, key, value), so a re-placed item never
// double-appears in any pair's set.
func (r *PostgresRepository) Index(ctx context.Context, dataitemID string, seq int64, pairs []Pair) error {
	pairs = Normalize(pairs)
	if len(pairs) == 0 {
		return nil
	}

	query := `
		INSERT INTO dataitem_tags (dataitem_id, tag_key, tag_value, seq)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dataitem_id, tag_key, tag_value) DO NOTHING;
	`
	for _, p := range pairs {
		if _, err := r.db.ExecContext(ctx, query, dataitemID, p.Key, p.Value, seq); err != nil {
			return fmt.Errorf("indexing tag (%s, %s) for %s: %w", p.Key, p.Value, dataitemID, err)
		}
	}
	return nil
}

// Query computes the intersection of all filter pairs with a single grouped
// statement: rows matching any pair are grouped per dataitem and kept only
// when every distinct pair was present. Results come back oldest-first on
// the ingestion sequence, starting strictly after afterSeq, which keeps
// pagination gap- and repeat-free under concurrent appends.
//
// Filters must already be normalized and non-empty; the service layer owns
// the empty-filter and page-size policy.
func (r *PostgresRepository) Query(ctx context.Context, filters []Pair, limit int, afterSeq int64) ([]Match, error) {
	placeholders := make([]string, 0, len(filters))
	args := make([]any, 0, 2*len(filters)+3)
	n := 1
	for _, f := range filters {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d)", n, n+1))
		args = append(args, f.Key, f.Value)
		n += 2
	}
	args = append(args, afterSeq, len(filters), limit)

	query := fmt.Sprintf(`
		SELECT dataitem_id, seq
		FROM dataitem_tags
		WHERE (tag_key, tag_value) IN (%s) AND seq > $%d
		GROUP BY dataitem_id, seq
		HAVING count(DISTINCT (tag_key, tag_value)) = $%d
		ORDER BY seq ASC
		LIMIT $%d;
	`, strings.Join(placeholders, ", "), n, n+1, n+2)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tag query failed: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.DataitemID, &m.Seq); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}
