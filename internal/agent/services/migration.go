package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/loadnetwork/load-s3-agent/internal/agent/bundler"
	"github.com/loadnetwork/load-s3-agent/internal/agent/config"
	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
	"github.com/loadnetwork/load-s3-agent/internal/agent/objectstore"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/repomanager"
	"github.com/loadnetwork/load-s3-agent/internal/common"
	"github.com/loadnetwork/load-s3-agent/internal/logging"
)

// MigrationService submits stored public dataitems to the permanent store,
// at most once per id.
type MigrationService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   objectstore.Store
	bundler bundler.Submitter
	config  *config.Config
	logger  logging.Logger

	// locks serializes submissions per dataitem id: a second Submit for
	// the same id waits for the first and then observes its outcome.
	locks sync.Map // map[string]*sync.Mutex
}

func NewMigrationService(db *sql.DB, repos repomanager.RepositoryManager, store objectstore.Store,
	b bundler.Submitter, cfg *config.Config, logger logging.Logger) *MigrationService {
	return &MigrationService{db: db, repos: repos, store: store, bundler: b, config: cfg, logger: logger}
}

func (s *MigrationService) lockFor(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Submit pushes the stored public dataitem to the bundler and records the
// receipt. Calling it again after success returns the recorded receipt
// without a second ledger submission; after a failure it retries.
//
// Eligibility failures (unknown id, private item, size over the free
// ceiling) leave the migration record untouched.
func (s *MigrationService) Submit(ctx context.Context, id string) (*bundler.Receipt, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.repos.Records(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Visibility != models.VisibilityPublic {
		return nil, fmt.Errorf("%w: %s is private", common.ErrNotEligible, id)
	}

	sub, err := s.repos.Submissions(s.db).Get(ctx, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if sub != nil && sub.State == models.SubmissionSubmitted {
		var receipt bundler.Receipt
		if err := json.Unmarshal(sub.Receipt, &receipt); err != nil {
			return nil, fmt.Errorf("stored receipt for %s is unreadable: %w", id, err)
		}
		return &receipt, nil
	}

	raw, err := s.store.Get(ctx, rec.Bucket, rec.StorageKey)
	if err != nil {
		return nil, err
	}
	size := int64(len(raw))
	if size > s.config.FreeUploadLimit {
		return nil, fmt.Errorf("%w: %d bytes over the %d-byte ceiling", common.ErrSizeExceeded, size, s.config.FreeUploadLimit)
	}

	receipt, rawReceipt, err := s.bundler.Submit(ctx, raw)
	if err != nil {
		if markErr := s.repos.Submissions(s.db).MarkFailed(ctx, id, size); markErr != nil {
			s.logger.Error(ctx, "recording failed submission", "dataitem_id", id, "error", markErr.Error())
		}
		return nil, fmt.Errorf("%w: %w", common.ErrSubmissionFailed, err)
	}

	if err := s.repos.Submissions(s.db).MarkSubmitted(ctx, id, rawReceipt, size); err != nil {
		// The bundler accepted the item; the submission is not rolled
		// back by a bookkeeping failure.
		s.logger.Error(ctx, "recording receipt", "dataitem_id", id, "error", err.Error())
	}
	s.logger.Info(ctx, "dataitem submitted to permanent storage", "dataitem_id", id, "tx", receipt.ID, "size", size)
	return receipt, nil
}
