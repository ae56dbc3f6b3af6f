package services

import (
	"context"
	"database/sql"

	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/records"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/repomanager"
)

// Stats is the aggregate served by GET /stats.
type Stats struct {
	Records   records.Stats
	Submitted int64
}

type StatsService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewStatsService(db *sql.DB, repos repomanager.RepositoryManager) *StatsService {
	return &StatsService{db: db, repos: repos}
}

func (s *StatsService) Stats(ctx context.Context) (*Stats, error) {
	rs, err := s.repos.Records(s.db).Stats(ctx)
	if err != nil {
		return nil, err
	}
	submitted, err := s.repos.Submissions(s.db).CountSubmitted(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Records: *rs, Submitted: submitted}, nil
}
