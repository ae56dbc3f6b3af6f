// Package services implements the agent's core operations on top of the
// repositories, the object store, the signer and the bundler client.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"

	"github.com/loadnetwork/load-s3-agent/internal/agent/config"
	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
	"github.com/loadnetwork/load-s3-agent/internal/agent/objectstore"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/repomanager"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/tagindex"
	"github.com/loadnetwork/load-s3-agent/internal/ans104"
	"github.com/loadnetwork/load-s3-agent/internal/common"
	"github.com/loadnetwork/load-s3-agent/internal/dbx"
	"github.com/loadnetwork/load-s3-agent/internal/logging"
)

// Placement carries the visibility decision and the caller's hints for one
// upload. Hints only apply to private placements.
type Placement struct {
	Visibility models.Visibility
	BucketHint string
	NameHint   string
	FolderHint string
}

// PlaceResult is the outcome of a successful (or index-incomplete)
// placement.
type PlaceResult struct {
	Record  *models.StorageRecord
	Item    *ans104.DataItem
	Created bool // false when byte-identical content was already stored
	Indexed bool // false for private items and for index-incomplete results
}

// PlacementService drives the ingestion path: codec -> signer -> object
// store -> storage record -> tag index (public only).
type PlacementService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  objectstore.Store
	signer ans104.Signer
	config *config.Config
	logger logging.Logger
}

func NewPlacementService(db *sql.DB, repos repomanager.RepositoryManager, store objectstore.Store,
	signer ans104.Signer, cfg *config.Config, logger logging.Logger) *PlacementService {
	return &PlacementService{db: db, repos: repos, store: store, signer: signer, config: cfg, logger: logger}
}

// reservedTagNames are always set by the agent on unsigned uploads and
// cannot be overridden by caller tags.
var reservedTagNames = map[string]struct{}{
	"content-type":  {},
	"data-protocol": {},
}

// buildUploadTags assembles the tag list for an agent-signed item:
// Content-Type and Data-Protocol first, then sanitized caller tags with
// reserved and duplicate names skipped.
func buildUploadTags(contentType string, extra []ans104.Tag) []ans104.Tag {
	tags := []ans104.Tag{
		{Name: "Content-Type", Value: contentType},
		{Name: "Data-Protocol", Value: common.DataProtocolName},
	}

	seen := make(map[string]struct{}, len(tags)+len(extra))
	for _, t := range tags {
		seen[strings.ToLower(t.Name)] = struct{}{}
	}
	for _, t := range extra {
		name := strings.TrimSpace(t.Name)
		value := strings.TrimSpace(t.Value)
		if name == "" || value == "" {
			continue
		}
		if len(name) > 1024 || len(value) > 1024 {
			continue
		}
		lower := strings.ToLower(name)
		if _, ok := reservedTagNames[lower]; ok {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		tags = append(tags, ans104.Tag{Name: name, Value: value})
	}
	return tags
}

// UploadUnsigned wraps a raw payload in a dataitem signed by the agent's
// uploader key and places it.
func (s *PlacementService) UploadUnsigned(ctx context.Context, data []byte, contentType string,
	extraTags []ans104.Tag, placement Placement) (*PlaceResult, error) {

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	item := &ans104.DataItem{
		Tags: buildUploadTags(contentType, extraTags),
		Data: data,
	}
	if err := ans104.Sign(item, s.signer); err != nil {
		return nil, err
	}

	raw, err := item.Encode()
	if err != nil {
		return nil, err
	}
	return s.place(ctx, item, raw, placement)
}

// UploadSigned accepts a pre-built signed dataitem. The envelope is decoded
// and verified before anything touches storage; an envelope that does not
// verify is rejected, never stored.
func (s *PlacementService) UploadSigned(ctx context.Context, raw []byte, placement Placement) (*PlaceResult, error) {
	item, err := ans104.Decode(raw)
	if err != nil {
		return nil, err
	}

	ok, err := ans104.Verify(item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: signature does not verify against owner", ans104.ErrMalformed)
	}
	return s.place(ctx, item, raw, placement)
}

func (s *PlacementService) place(ctx context.Context, item *ans104.DataItem, raw []byte, placement Placement) (*PlaceResult, error) {
	id := item.ID()

	bucket, key, name, folder, err := s.resolveLocation(id, placement)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, bucket, key, raw, item.ContentType()); err != nil {
		return nil, err
	}

	rec := &models.StorageRecord{
		DataitemID:  id,
		Visibility:  placement.Visibility,
		Bucket:      bucket,
		StorageKey:  key,
		Name:        name,
		Folder:      folder,
		ContentType: item.ContentType(),
		Size:        int64(len(raw)),
	}
	rec, created, err := s.repos.Records(s.db).Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("recording placement: %w", err)
	}

	result := &PlaceResult{Record: rec, Item: item, Created: created}

	// Private items are deliberately kept out of the tag index; the
	// suppression lives here, not in the absence of a call site.
	if placement.Visibility != models.VisibilityPublic {
		return result, nil
	}

	pairs := make([]tagindex.Pair, 0, len(item.Tags))
	for _, t := range item.Tags {
		pairs = append(pairs, tagindex.Pair{Key: t.Name, Value: t.Value})
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Tags(tx).Index(ctx, id, rec.Seq, pairs)
	})
	if err != nil {
		// The object and its record are durable; only queryability is
		// missing. Callers must see this as distinct from clean success.
		s.logger.Error(ctx, "tag indexing failed after placement", "dataitem_id", id, "error", err.Error())
		return result, fmt.Errorf("%w: %w", common.ErrIndexIncomplete, err)
	}

	result.Indexed = true
	return result, nil
}

// resolveLocation applies the visibility policy: public placements are
// agent-controlled, private ones honor hints against the configured
// allow-list.
func (s *PlacementService) resolveLocation(id string, placement Placement) (bucket, key, name, folder string, err error) {
	switch placement.Visibility {
	case models.VisibilityPublic:
		return s.config.S3PublicBucket, "dataitems/" + id, "", "", nil

	case models.VisibilityPrivate:
		bucket = s.config.S3PrivateBucket
		if placement.BucketHint != "" {
			if !s.bucketAllowed(placement.BucketHint) {
				return "", "", "", "", fmt.Errorf("%w: bucket %q not allowed", common.ErrInvalidHint, placement.BucketHint)
			}
			bucket = placement.BucketHint
		}

		name = placement.NameHint
		if name == "" {
			name = id
		}
		folder = strings.Trim(placement.FolderHint, "/")
		if strings.Contains(name, "/") || strings.Contains(folder, "..") || strings.Contains(name, "..") {
			return "", "", "", "", fmt.Errorf("%w: name or folder contains path segments", common.ErrInvalidHint)
		}

		key = name
		if folder != "" {
			key = path.Join(folder, name)
		}
		return bucket, key, name, folder, nil

	default:
		return "", "", "", "", fmt.Errorf("%w: visibility %q", common.ErrInvalidHint, placement.Visibility)
	}
}

func (s *PlacementService) bucketAllowed(bucket string) bool {
	if bucket == s.config.S3PrivateBucket {
		return true
	}
	for _, b := range s.config.S3PrivateBucketAllowList {
		if b == bucket {
			return true
		}
	}
	return false
}

// Fetch returns the stored envelope bytes and record for a dataitem id.
func (s *PlacementService) Fetch(ctx context.Context, id string) ([]byte, *models.StorageRecord, error) {
	rec, err := s.repos.Records(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.store.Get(ctx, rec.Bucket, rec.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return raw, rec, nil
}

// PresignURL mints a time-bounded read-only URL for a stored dataitem.
func (s *PlacementService) PresignURL(ctx context.Context, id string) (string, error) {
	rec, err := s.repos.Records(s.db).GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.store.Presign(ctx, rec.Bucket, rec.StorageKey, s.config.PresignExpiry)
}
