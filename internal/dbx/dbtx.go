// Package dbx holds the small database plumbing the repositories share: the
// DBTX interface that lets a repository run against either the pool or an
// open transaction, and WithTx for the few multi-statement writes (tag
// indexing) that need transactional scope.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the repositories need. *sql.DB and *sql.Tx
// both satisfy it, so the repository manager can hand out the same
// repository type bound to either.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: commit when fn returns nil, rollback
// when it returns an error or panics. Panics are re-raised after rollback.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
