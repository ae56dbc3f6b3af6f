// Package repomanager wires the PostgreSQL repositories together and owns
// schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/loadnetwork/load-s3-agent/internal/agent/migrations"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/records"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/submissions"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/tagindex"
	"github.com/loadnetwork/load-s3-agent/internal/dbx"
)

type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tags(db dbx.DBTX) tagindex.Repository {
	return tagindex.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Submissions(db dbx.DBTX) submissions.Repository {
	return submissions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
