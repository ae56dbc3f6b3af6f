package httpserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/loadnetwork/load-s3-agent/internal/agent/bundler"
	"github.com/loadnetwork/load-s3-agent/internal/agent/config"
	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
	"github.com/loadnetwork/load-s3-agent/internal/agent/objectstore"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/records"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/submissions"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/tagindex"
	"github.com/loadnetwork/load-s3-agent/internal/agent/services"
	"github.com/loadnetwork/load-s3-agent/internal/ans104"
	"github.com/loadnetwork/load-s3-agent/internal/common"
	"github.com/loadnetwork/load-s3-agent/internal/dbx"
	"github.com/loadnetwork/load-s3-agent/internal/logging"
)

// memRepos is an in-memory RepositoryManager for handler tests; the DBTX
// handle is ignored.
type memRepos struct {
	recs *memRecords
	tags *memTags
	subs *memSubmissions
}

func newMemRepos() *memRepos {
	return &memRepos{
		recs: &memRecords{byID: map[string]*models.StorageRecord{}},
		tags: &memTags{rows: map[tagindex.Pair]map[string]int64{}},
		subs: &memSubmissions{byID: map[string]*models.MigrationRecord{}},
	}
}

func (m *memRepos) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepos) Records(dbx.DBTX) records.Repository          { return m.recs }
func (m *memRepos) Tags(dbx.DBTX) tagindex.Repository            { return m.tags }
func (m *memRepos) Submissions(dbx.DBTX) submissions.Repository  { return m.subs }

type memRecords struct {
	byID    map[string]*models.StorageRecord
	nextSeq int64
}

func (m *memRecords) Create(_ context.Context, rec *models.StorageRecord) (*models.StorageRecord, bool, error) {
	if existing, ok := m.byID[rec.DataitemID]; ok {
		return existing, false, nil
	}
	m.nextSeq++
	rec.Seq = m.nextSeq
	rec.CreatedAt = time.Now()
	m.byID[rec.DataitemID] = rec
	return rec, true, nil
}

func (m *memRecords) GetByID(_ context.Context, id string) (*models.StorageRecord, error) {
	rec, ok := m.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (m *memRecords) Stats(context.Context) (*records.Stats, error) {
	s := &records.Stats{}
	for _, rec := range m.byID {
		s.Total++
		if rec.Visibility == models.VisibilityPublic {
			s.Public++
		} else {
			s.Private++
		}
	}
	return s, nil
}

type memTags struct {
	rows map[tagindex.Pair]map[string]int64
}

func (m *memTags) Index(_ context.Context, id string, seq int64, pairs []tagindex.Pair) error {
	for _, p := range tagindex.Normalize(pairs) {
		set, ok := m.rows[p]
		if !ok {
			set = map[string]int64{}
			m.rows[p] = set
		}
		if _, ok := set[id]; !ok {
			set[id] = seq
		}
	}
	return nil
}

func (m *memTags) Query(_ context.Context, filters []tagindex.Pair, limit int, afterSeq int64) ([]tagindex.Match, error) {
	counts := map[string]int{}
	seqs := map[string]int64{}
	for _, p := range filters {
		for id, seq := range m.rows[p] {
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

type memSubmissions struct {
	byID map[string]*models.MigrationRecord
}

func (m *memSubmissions) Get(_ context.Context, id string) (*models.MigrationRecord, error) {
	rec, ok := m.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (m *memSubmissions) MarkSubmitted(_ context.Context, id string, receipt []byte, size int64) error {
	m.byID[id] = &models.MigrationRecord{
		DataitemID: id, State: models.SubmissionSubmitted, Receipt: receipt, Size: size, UpdatedAt: time.Now(),
	}
	return nil
}

func (m *memSubmissions) MarkFailed(_ context.Context, id string, size int64) error {
	m.byID[id] = &models.MigrationRecord{
		DataitemID: id, State: models.SubmissionFailed, Size: size, UpdatedAt: time.Now(),
	}
	return nil
}

func (m *memSubmissions) CountSubmitted(context.Context) (int64, error) {
	var n int64
	for _, rec := range m.byID {
		if rec.State == models.SubmissionSubmitted {
			n++
		}
	}
	return n, nil
}

type stubBundler struct{ calls int }

func (b *stubBundler) Submit(context.Context, []byte) (*bundler.Receipt, []byte, error) {
	b.calls++
	receipt := &bundler.Receipt{ID: "tx-receipt", Timestamp: 1700000000}
	raw, _ := json.Marshal(receipt)
	return receipt, raw, nil
}

type serverFixture struct {
	server  *Server
	config  *config.Config
	store   *objectstore.MemoryStore
	bundler *stubBundler
}

func newServerFixture(t *testing.T) *serverFixture {
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

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ans104.NewEd25519Signer(priv)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.S3PrivateBucketAllowList = []string{"team-bucket"}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	repos := newMemRepos()
	store := objectstore.NewMemoryStore()
	b := &stubBundler{}

	placement := services.NewPlacementService(db, repos, store, signer, cfg, logger)
	query := services.NewQueryService(db, repos)
	migration := services.NewMigrationService(db, repos, store, b, cfg, logger)
	stats := services.NewStatsService(db, repos)

	return &serverFixture{
		server:  NewServer(placement, query, migration, stats, cfg, logger, "test-uploader-address"),
		config:  cfg,
		store:   store,
		bundler: b,
	}
}
