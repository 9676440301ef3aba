package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deepscout/deepscout/research"
)

func mustQuery(t *testing.T, text string) research.Query {
	t.Helper()
	q, err := research.NewQuery(text, research.Options{})
	require.NoError(t, err)
	return q
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(mustQuery(t, "Climate   Change"))
	b := Fingerprint(mustQuery(t, "climate change"))
	c := Fingerprint(mustQuery(t, "climate change effects"))

	assert.Equal(t, a, b, "normalization must collapse case and whitespace")
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "research:")
	// sha256 hex digest after the prefix.
	assert.Len(t, a, len("research:")+64)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	result := &research.Result{Query: "q", Summary: "summary"}
	require.NoError(t, store.Set(ctx, "k", result, time.Minute))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "summary", got.Summary)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "k", &research.Result{Query: "q"}, time.Hour))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	current = current.Add(2 * time.Hour)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must behave as a miss")
}

func TestMemoryStoreIgnoresUselessWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k", nil, time.Minute))
	require.NoError(t, store.Set(ctx, "k", &research.Result{}, 0))
	assert.Equal(t, 0, store.Len())
}

// failingStore errors on every operation.
type failingStore struct{}

func (f *failingStore) Get(context.Context, string) (*research.Result, bool, error) {
	return nil, false, errors.New("backend down")
}

func (f *failingStore) Set(context.Context, string, *research.Result, time.Duration) error {
	return errors.New("backend down")
}

func (f *failingStore) Close() error { return nil }

func TestResilientDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	wrapped := NewResilient(&failingStore{}, zap.NewNop())

	_, ok, err := wrapped.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, wrapped.Set(ctx, "k", &research.Result{}, time.Minute))
}

func TestResilientNilInner(t *testing.T) {
	ctx := context.Background()
	wrapped := NewResilient(nil, nil)

	_, ok, err := wrapped.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, wrapped.Set(ctx, "k", &research.Result{}, time.Minute))
	assert.NoError(t, wrapped.Close())
}
