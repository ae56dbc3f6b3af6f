package objectstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadnetwork/load-s3-agent/internal/common"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "bucket", "key", []byte("payload"), "text/plain"))

	got, err := s.Get(ctx, "bucket", "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	// The stored copy must not alias the caller's slice.
	got[0] = 'X'
	again, err := s.Get(ctx, "bucket", "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), again)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "bucket", "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStore_Presign(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Presign(ctx, "bucket", "nope", time.Minute)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.Put(ctx, "bucket", "key", []byte("x"), ""))
	url, err := s.Presign(ctx, "bucket", "key", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://bucket/key?expires="))
}
