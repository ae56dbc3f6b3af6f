package tagindex

import (
	"context"
	"strings"
)

// Pair is one (key, value) tag predicate.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Match is one query hit: a public dataitem id and its ingestion sequence,
// the position key pagination cursors are built from.
type Match struct {
	DataitemID string
	Seq        int64
}

// Repository maintains the inverted (key, value) -> dataitem id mapping for
// public envelopes.
type Repository interface {
	// Index appends id to every pair's set. Idempotent per
	// (id, key, value); called only on the public ingestion path.
	Index(ctx context.Context, dataitemID string, seq int64, pairs []Pair) error

	// Query returns up to limit matches carrying every filter pair
	// (set intersection), in ingestion order, restricted to seq > afterSeq.
	Query(ctx context.Context, filters []Pair, limit int, afterSeq int64) ([]Match, error)
}

const maxTagLength = 1024

// Normalize trims pairs, drops empty or oversized ones, and removes
// duplicates while preserving first-seen order. Shared by the indexing and
// query paths so both sides agree on what a pair is.
func Normalize(pairs []Pair) []Pair {
	seen := make(map[Pair]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		p.Key = strings.TrimSpace(p.Key)
		p.Value = strings.TrimSpace(p.Value)
		if p.Key == "" || p.Value == "" {
			continue
		}
		if len(p.Key) > maxTagLength || len(p.Value) > maxTagLength {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
