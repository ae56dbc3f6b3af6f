package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/repomanager"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/tagindex"
	"github.com/loadnetwork/load-s3-agent/internal/common"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// TagQueryPage is one page of a tag intersection query.
type TagQueryPage struct {
	Items       []string // dataitem ids in ingestion order, oldest first
	HasNextPage bool
	NextCursor  *string
}

// QueryService serves cursor-paginated tag intersection queries over the
// public tag index.
type QueryService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewQueryService(db *sql.DB, repos repomanager.RepositoryManager) *QueryService {
	return &QueryService{db: db, repos: repos}
}

// cursorPayload is the decoded form of the opaque pagination cursor. Seq is
// the ingestion sequence of the last returned item: a position in a stable
// total order, so items appended concurrently behind the cursor are neither
// skipped nor repeated.
type cursorPayload struct {
	Seq        int64  `json:"seq"`
	DataitemID string `json:"dataitem_id"`
}

// Query returns the ids carrying every filter pair.
//
// first = 0 means the default page size; anything else outside [1,100] is
// rejected with ErrInvalidPageSize. An empty (or fully normalized-away)
// filter list is an error, not match-all. after resumes a previous page.
func (s *QueryService) Query(ctx context.Context, filters []tagindex.Pair, first int, after *string) (*TagQueryPage, error) {
	normalized := tagindex.Normalize(filters)
	if len(normalized) == 0 {
		return nil, common.ErrEmptyFilter
	}

	if first == 0 {
		first = DefaultPageSize
	}
	if first < 1 || first > MaxPageSize {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", common.ErrInvalidPageSize, first, MaxPageSize)
	}

	var afterSeq int64
	if after != nil && *after != "" {
		cursor, err := decodeCursor(*after)
		if err != nil {
			return nil, err
		}
		afterSeq = cursor.Seq
	}

	// Fetch one extra row to learn whether another page exists.
	matches, err := s.repos.Tags(s.db).Query(ctx, normalized, first+1, afterSeq)
	if err != nil {
		return nil, err
	}

	page := &TagQueryPage{Items: []string{}}
	if len(matches) > first {
		page.HasNextPage = true
		matches = matches[:first]
	}
	for _, m := range matches {
		page.Items = append(page.Items, m.DataitemID)
	}
	if page.HasNextPage {
		last := matches[len(matches)-1]
		cursor := encodeCursor(cursorPayload{Seq: last.Seq, DataitemID: last.DataitemID})
		page.NextCursor = &cursor
	}
	return page, nil
}

func encodeCursor(p cursorPayload) string {
	raw, _ := json.Marshal(p)
	return base64.RawStdEncoding.EncodeToString(raw)
}

func decodeCursor(encoded string) (*cursorPayload, error) {
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidCursor, err)
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidCursor, err)
	}
	return &p, nil
}
