package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/loadnetwork/load-s3-agent/internal/agent/bundler"
	"github.com/loadnetwork/load-s3-agent/internal/agent/config"
	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/records"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/submissions"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/tagindex"
	"github.com/loadnetwork/load-s3-agent/internal/common"
	"github.com/loadnetwork/load-s3-agent/internal/dbx"
	"github.com/loadnetwork/load-s3-agent/internal/logging"
)

// In-memory repository fakes. They ignore the DBTX handle, so services can
// run against them with a sqlmock *sql.DB standing in for the pool.

type fakeRepos struct {
	records     *fakeRecords
	tags        *fakeTags
	submissions *fakeSubmissions
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		records:     &fakeRecords{byID: map[string]*models.StorageRecord{}},
		tags:        &fakeTags{rows: map[tagindex.Pair]map[string]int64{}},
		submissions: &fakeSubmissions{byID: map[string]*models.MigrationRecord{}},
	}
}

func (f *fakeRepos) RunMigrations(context.Context, *sql.DB) error         { return nil }
func (f *fakeRepos) Records(dbx.DBTX) records.Repository                  { return f.records }
func (f *fakeRepos) Tags(dbx.DBTX) tagindex.Repository                    { return f.tags }
func (f *fakeRepos) Submissions(dbx.DBTX) submissions.Repository          { return f.submissions }

type fakeRecords struct {
	mu      sync.Mutex
	byID    map[string]*models.StorageRecord
	nextSeq int64
	err     error
}

func (f *fakeRecords) Create(_ context.Context, rec *models.StorageRecord) (*models.StorageRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if existing, ok := f.byID[rec.DataitemID]; ok {
		return existing, false, nil
	}
	f.nextSeq++
	rec.Seq = f.nextSeq
	rec.CreatedAt = time.Now()
	f.byID[rec.DataitemID] = rec
	return rec, true, nil
}

func (f *fakeRecords) GetByID(_ context.Context, id string) (*models.StorageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return nil, commonNotFound
	}
	return rec, nil
}

func (f *fakeRecords) Stats(context.Context) (*records.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &records.Stats{}
	for _, rec := range f.byID {
		s.Total++
		if rec.Visibility == models.VisibilityPublic {
			s.Public++
		} else {
			s.Private++
		}
	}
	return s, nil
}

type fakeTags struct {
	mu   sync.Mutex
	rows map[tagindex.Pair]map[string]int64 // pair -> id -> seq
	err  error
}

func (f *fakeTags) Index(_ context.Context, id string, seq int64, pairs []tagindex.Pair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, p := range tagindex.Normalize(pairs) {
		set, ok := f.rows[p]
		if !ok {
			set = map[string]int64{}
			f.rows[p] = set
		}
		if _, ok := set[id]; !ok {
			set[id] = seq
		}
	}
	return nil
}

func (f *fakeTags) Query(_ context.Context, filters []tagindex.Pair, limit int, afterSeq int64) ([]tagindex.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	counts := map[string]int{}
	seqs := map[string]int64{}
	for _, p := range filters {
		for id, seq := range f.rows[p] {
			counts[id]++
			seqs[id] = seq
		}
	}

	var matches []tagindex.Match
	for id, n := range counts {
		if n == len(filters) && seqs[id] > afterSeq {
			matches = append(matches, tagindex.Match{DataitemID: id, Seq: seqs[id]})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Seq < matches[j].Seq })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// pairCount reports how many ids a pair maps to; test helper.
func (f *fakeTags) pairCount(p tagindex.Pair) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[p])
}

func (f *fakeTags) empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows) == 0
}

type fakeSubmissions struct {
	mu   sync.Mutex
	byID map[string]*models.MigrationRecord
}

func (f *fakeSubmissions) Get(_ context.Context, id string) (*models.MigrationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return nil, commonNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeSubmissions) MarkSubmitted(_ context.Context, id string, receipt []byte, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.byID[id]; ok && rec.State == models.SubmissionSubmitted {
		return nil
	}
	f.byID[id] = &models.MigrationRecord{
		DataitemID: id, State: models.SubmissionSubmitted, Receipt: receipt, Size: size, UpdatedAt: time.Now(),
	}
	return nil
}

func (f *fakeSubmissions) MarkFailed(_ context.Context, id string, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.byID[id]; ok && rec.State == models.SubmissionSubmitted {
		return nil
	}
	f.byID[id] = &models.MigrationRecord{
		DataitemID: id, State: models.SubmissionFailed, Size: size, UpdatedAt: time.Now(),
	}
	return nil
}

func (f *fakeSubmissions) CountSubmitted(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, rec := range f.byID {
		if rec.State == models.SubmissionSubmitted {
			n++
		}
	}
	return n, nil
}

func (f *fakeSubmissions) state(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return ""
	}
	return rec.State
}

type fakeBundler struct {
	mu      sync.Mutex
	calls   int
	failErr error
}

func (f *fakeBundler) Submit(_ context.Context, dataitem []byte) (*bundler.Receipt, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failErr != nil {
		return nil, nil, f.failErr
	}
	receipt := &bundler.Receipt{ID: "tx-receipt", Owner: "bundler-owner", Timestamp: 1700000000}
	raw, _ := json.Marshal(receipt)
	return receipt, raw, nil
}

func (f *fakeBundler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newMockDB returns a *sql.DB whose transactions always succeed, for
// exercising dbx.WithTx around the fake repositories.
func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 64; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.S3PrivateBucketAllowList = []string{"team-bucket"}
	return cfg
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var commonNotFound = common.ErrNotFound
