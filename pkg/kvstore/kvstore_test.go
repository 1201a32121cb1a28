package kvstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, "k", []byte("v1")))
	require.NoError(t, m.Put(ctx, "k", []byte("v2")))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf))
	buf[0] = 'x'
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

// TestRedisGetPut runs against a live server when YOMIWAKE_TEST_REDIS_URL is set.
func TestRedisGetPut(t *testing.T) {
	url := os.Getenv("YOMIWAKE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("YOMIWAKE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := OpenRedis(ctx, url, "yomiwake-test:")
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Get(ctx, "definitely-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Put(ctx, "k", []byte("v")))
	got, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
