package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidgo/evidgo/kvstore"
	"github.com/evidgo/evidgo/testutil"
)

func newTestCache(t *testing.T, provider Provider, opts ...CacheOption) *Cache {
	t.Helper()
	cache, err := NewCache(context.Background(), provider, opts...)
	require.NoError(t, err)
	return cache
}

func TestCache_Determinism(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider)

	first, err := cache.Embed(ctx, "batch effects distort expression estimates")
	require.NoError(t, err)

	second, err := cache.Embed(ctx, "batch effects distort expression estimates")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.Calls(), "second embed must be served from cache")
}

func TestCache_NormalizedTextSharesEntry(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider)

	_, err := cache.Embed(ctx, "ComBat removes batch effects")
	require.NoError(t, err)
	_, err = cache.Embed(ctx, "  combat removes batch effects ")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.Calls())
}

func TestCache_ReturnedVectorIsACopy(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	cache := newTestCache(t, provider)

	vec, err := cache.Embed(ctx, "a claim")
	require.NoError(t, err)
	vec[0] = 999

	again, err := cache.Embed(ctx, "a claim")
	require.NoError(t, err)
	assert.NotEqual(t, float32(999), again[0])
}

func TestCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	cache := newTestCache(t, provider, WithMaxSize(3))

	for _, text := range []string{"A", "B", "C"} {
		_, err := cache.Embed(ctx, text)
		require.NoError(t, err)
	}

	// Re-access A, then insert D: B is the least recently used.
	_, err := cache.Embed(ctx, "A")
	require.NoError(t, err)
	_, err = cache.Embed(ctx, "D")
	require.NoError(t, err)

	assert.True(t, cache.Contains("A"))
	assert.True(t, cache.Contains("C"))
	assert.True(t, cache.Contains("D"))
	assert.False(t, cache.Contains("B"))
	assert.Equal(t, 3, cache.Len())
}

func TestCache_SizeBound(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	cache := newTestCache(t, provider, WithMaxSize(5))

	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, text := range texts {
		_, err := cache.Embed(ctx, text)
		require.NoError(t, err)
		assert.LessOrEqual(t, cache.Len(), 5)
	}

	_, err := cache.EmbedBatch(ctx, []string{"i", "j", "k", "l", "m", "n"})
	require.NoError(t, err)
	assert.LessOrEqual(t, cache.Len(), 5)
}

func TestCache_TrimCache(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	cache := newTestCache(t, provider, WithMaxSize(10))

	for _, text := range []string{"one", "two", "three", "four"} {
		_, err := cache.Embed(ctx, text)
		require.NoError(t, err)
	}

	// Touch "one" so it is the most recently used.
	_, err := cache.Embed(ctx, "one")
	require.NoError(t, err)

	cache.TrimCache(2)
	assert.Equal(t, 2, cache.Len())
	assert.True(t, cache.Contains("one"), "recently accessed entries survive eviction")
	assert.False(t, cache.Contains("two"))
}

func TestCache_EmbedBatchOrdering(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider)

	// Pre-cache "b".
	vecB, err := cache.Embed(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, 1, provider.Calls())

	vecs, err := cache.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, 2, provider.Calls(), "one batch call for the uncached subset")
	assert.Equal(t, []string{"b", "a", "c"}, provider.Embedded())
	assert.Equal(t, vecB, vecs[1])

	// Results line up with a direct embed of each text.
	for i, text := range []string{"a", "b", "c"} {
		want, err := cache.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, want, vecs[i], "position %d", i)
	}
}

func TestCache_EmbedBatchDeduplicates(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider)

	vecs, err := cache.EmbedBatch(ctx, []string{"x", "y", "x", "x"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	assert.Equal(t, []string{"x", "y"}, provider.Embedded())
	assert.Equal(t, vecs[0], vecs[2])
	assert.Equal(t, vecs[0], vecs[3])
}

func TestCache_EmbedBatchThrottled(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider)

	// Pre-cache one text; five misses remain, chunked into groups of two.
	_, err := cache.Embed(ctx, "cached")
	require.NoError(t, err)
	before := provider.Calls()

	texts := []string{"m1", "cached", "m2", "m3", "m4", "m5"}
	vecs, err := cache.EmbedBatchThrottled(ctx, texts, 2)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	// ceil(5/2) = 3 provider calls.
	assert.Equal(t, before+3, provider.Calls())

	for i, text := range texts {
		want, err := cache.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, want, vecs[i], "position %d", i)
	}
}

func TestCache_ProviderErrorPropagates(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(8)
	provider.FailWith(NewRateLimitError("embed", 0, errors.New("429")))
	cache := newTestCache(t, provider)

	_, err := cache.Embed(ctx, "text")
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())

	_, err = cache.EmbedBatch(ctx, []string{"u", "v"})
	assert.Error(t, err, "batch fails as a whole rather than corrupting order")
}

func TestCache_DiskTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider, WithDiskStore(store))

	want, err := cache.Embed(ctx, "persisted claim")
	require.NoError(t, err)
	require.Equal(t, 1, provider.Calls())

	// A fresh cache over the same store must serve from disk.
	provider2 := testutil.NewProvider(8)
	cache2 := newTestCache(t, provider2, WithDiskStore(store))

	got, err := cache2.Embed(ctx, "persisted claim")
	require.NoError(t, err)
	assert.Equal(t, want, got, "vectors round-trip losslessly through disk")
	assert.Equal(t, 0, provider2.Calls())
}

func TestCache_DiskMissFallsThroughToProvider(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider, WithDiskStore(store), WithMaxSize(1))

	// Fill then evict "first" from memory; it stays on disk.
	_, err := cache.Embed(ctx, "first")
	require.NoError(t, err)
	_, err = cache.Embed(ctx, "second")
	require.NoError(t, err)
	require.Equal(t, 2, provider.Calls())

	// Memory-miss, disk-hit: no provider call.
	_, err = cache.Embed(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())
}

func TestCache_CorruptDiskEntrySkipped(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	provider := testutil.NewProvider(8)
	cache := newTestCache(t, provider, WithDiskStore(store))

	_, err := cache.Embed(ctx, "good entry")
	require.NoError(t, err)

	// Corrupt a second entry behind the cache's back.
	require.NoError(t, store.Put(ctx, cache.Fingerprint("bad entry"), []byte("garbage")))

	// Construction over the damaged store must not fail.
	provider2 := testutil.NewProvider(8)
	cache2 := newTestCache(t, provider2, WithDiskStore(store))

	// The corrupt entry falls through to the provider.
	_, err = cache2.Embed(ctx, "bad entry")
	require.NoError(t, err)
	assert.Equal(t, 1, provider2.Calls())

	// The good entry is still served without a provider call.
	_, err = cache2.Embed(ctx, "good entry")
	require.NoError(t, err)
	assert.Equal(t, 1, provider2.Calls())
}

func TestCache_CosineSimilarity(t *testing.T) {
	cache := newTestCache(t, testutil.NewProvider(4))

	sim, err := cache.CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	_, err = cache.CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.Error(t, err)

	sim, err = cache.CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	require.NoError(t, err)
	assert.Zero(t, sim)
}
