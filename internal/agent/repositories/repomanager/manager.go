package repomanager

import (
	"context"
	"database/sql"

	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/records"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/submissions"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/tagindex"
	"github.com/loadnetwork/load-s3-agent/internal/dbx"
)

// RepositoryManager hands out repositories bound to a DBTX, so services can
// run them against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	Tags(db dbx.DBTX) tagindex.Repository
	Submissions(db dbx.DBTX) submissions.Repository
}
