// Package objectstore abstracts the temporal S3-compatible blob store the
// agent places envelopes into.
package objectstore

import (
	"context"
	"time"
)

// Store is the object I/O surface the agent needs from the temporal store.
type Store interface {
	// Put writes data under bucket/key with the given content type.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// Get retrieves the object at bucket/key. Returns
	// common.ErrNotFound when the key does not exist.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Presign mints a time-bounded read-only URL for bucket/key. The URL
	// expires at or before ttl; enforcement belongs to the store.
	Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error
}
