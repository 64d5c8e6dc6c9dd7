package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidgo/evidgo/codec"
	"github.com/evidgo/evidgo/kvstore"
	"github.com/evidgo/evidgo/model"
)

func testEntries() []Entry {
	return []Entry{
		{Text: "exact match", Lines: model.LineRange{Start: 1, End: 3}, Vector: []float32{1, 0, 0, 0}},
		{Text: "close match", Lines: model.LineRange{Start: 4, End: 6}, Vector: []float32{0.9, 0.4, 0, 0}},
		{Text: "orthogonal", Lines: model.LineRange{Start: 7, End: 9}, Vector: []float32{0, 1, 0, 0}},
		{Text: "opposite", Lines: model.LineRange{Start: 10, End: 12}, Vector: []float32{-1, 0.1, 0, 0}},
	}
}

func TestIndex_QueryOrdering(t *testing.T) {
	ctx := context.Background()
	ix := New(kvstore.NewMemoryStore())

	skipped, err := ix.UpsertSnippets(ctx, "methods.md", "v1", testEntries())
	require.NoError(t, err)
	assert.False(t, skipped)

	scored, err := ix.Query(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, scored, 3)

	assert.Equal(t, "exact match", scored[0].Text)
	assert.Equal(t, "close match", scored[1].Text)
	assert.Equal(t, "orthogonal", scored[2].Text)
	assert.InDelta(t, 1.0, scored[0].Similarity, 0.02)
	assert.Greater(t, scored[0].Similarity, scored[1].Similarity)
	assert.Greater(t, scored[1].Similarity, scored[2].Similarity)
}

func TestIndex_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	ix := New(kvstore.NewMemoryStore())

	scored, err := ix.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestIndex_InvalidLimit(t *testing.T) {
	ctx := context.Background()
	ix := New(kvstore.NewMemoryStore())

	_, err := ix.Query(ctx, []float32{1, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestIndex_UnchangedContentSkips(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	ix := New(store)

	_, err := ix.UpsertSnippets(ctx, "a.md", "content", testEntries())
	require.NoError(t, err)
	before := store.Len()

	skipped, err := ix.UpsertSnippets(ctx, "a.md", "content", nil)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, before, store.Len(), "a skipped upsert writes nothing")

	changed, err := ix.HasChanged(ctx, "a.md", "content")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestIndex_ReplaceOrigin(t *testing.T) {
	ctx := context.Background()
	ix := New(kvstore.NewMemoryStore())

	_, err := ix.UpsertSnippets(ctx, "a.md", "v1", testEntries())
	require.NoError(t, err)

	replacement := []Entry{
		{Text: "rewritten section", Lines: model.LineRange{Start: 1, End: 2}, Vector: []float32{0, 0, 1, 0}},
	}
	skipped, err := ix.UpsertSnippets(ctx, "a.md", "v2", replacement)
	require.NoError(t, err)
	assert.False(t, skipped)

	snippets, err := ix.SnippetsForOrigin(ctx, "a.md")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "rewritten section", snippets[0].Text)

	// The replaced snippets are gone from query results too.
	scored, err := ix.Query(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "rewritten section", scored[0].Text)
}

func TestIndex_OriginsAreIndependent(t *testing.T) {
	ctx := context.Background()
	ix := New(kvstore.NewMemoryStore())

	_, err := ix.UpsertSnippets(ctx, "a.md", "v1", testEntries()[:2])
	require.NoError(t, err)
	_, err = ix.UpsertSnippets(ctx, "b.md", "v1", testEntries()[2:])
	require.NoError(t, err)

	// Re-indexing a.md must not disturb b.md.
	_, err = ix.UpsertSnippets(ctx, "a.md", "v2", testEntries()[:1])
	require.NoError(t, err)

	fromB, err := ix.SnippetsForOrigin(ctx, "b.md")
	require.NoError(t, err)
	assert.Len(t, fromB, 2)

	all, err := ix.AllSnippets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIndex_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	ix := New(store)
	_, err := ix.UpsertSnippets(ctx, "a.md", "v1", testEntries())
	require.NoError(t, err)

	// A fresh index over the same store loads lazily on first use.
	reopened := New(store)

	scored, err := reopened.Query(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "exact match", scored[0].Text)
	assert.Equal(t, model.LineRange{Start: 1, End: 3}, scored[0].Lines)

	// The unchanged-content check survives the restart.
	skipped, err := reopened.UpsertSnippets(ctx, "a.md", "v1", nil)
	require.NoError(t, err)
	assert.True(t, skipped)
}

// failingDeleteStore simulates a backend whose deletes are unavailable,
// leaving replaced records behind.
type failingDeleteStore struct {
	*kvstore.MemoryStore
	failDeletes bool
}

func (s *failingDeleteStore) Delete(ctx context.Context, key string) error {
	if s.failDeletes {
		return errors.New("delete unavailable")
	}
	return s.MemoryStore.Delete(ctx, key)
}

func TestIndex_FailedDeleteDoesNotResurrectReplacedSnippets(t *testing.T) {
	ctx := context.Background()
	store := &failingDeleteStore{MemoryStore: kvstore.NewMemoryStore()}

	ix := New(store)
	_, err := ix.UpsertSnippets(ctx, "doc.md", "v1", testEntries())
	require.NoError(t, err)

	// Replace the set while deletes fail; the old records stay on disk.
	store.failDeletes = true
	replacement := []Entry{
		{Text: "rewritten section", Lines: model.LineRange{Start: 1, End: 2}, Vector: []float32{0, 0, 1, 0}},
	}
	_, err = ix.UpsertSnippets(ctx, "doc.md", "v2", replacement)
	require.NoError(t, err)

	staleKeys, err := store.List(ctx, snippetKeyPrefix)
	require.NoError(t, err)
	require.Len(t, staleKeys, 5, "replaced records linger in the store")

	// A fresh index over the same store must see only the new set.
	reopened := New(store)
	snippets, err := reopened.SnippetsForOrigin(ctx, "doc.md")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "rewritten section", snippets[0].Text)

	all, err := reopened.AllSnippets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	scored, err := reopened.Query(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "rewritten section", scored[0].Text)

	// Once deletes work again, loading sweeps the stale records out.
	store.failDeletes = false
	swept := New(store)
	_, err = swept.AllSnippets(ctx)
	require.NoError(t, err)
	keys, err := store.List(ctx, snippetKeyPrefix)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestIndex_CorruptRecordSkippedOnLoad(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	ix := New(store)
	_, err := ix.UpsertSnippets(ctx, "a.md", "v1", testEntries()[:2])
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, snippetKeyPrefix+"999", []byte("garbage")))

	reopened := New(store)
	all, err := reopened.AllSnippets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "corrupt records are skipped, not fatal")
}

func TestIndex_Clear(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	ix := New(store)

	_, err := ix.UpsertSnippets(ctx, "a.md", "v1", testEntries())
	require.NoError(t, err)
	require.NoError(t, ix.Clear(ctx))

	assert.Equal(t, 0, store.Len())

	scored, err := ix.Query(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, scored)

	// Cleared origins are indexed again even with identical content.
	skipped, err := ix.UpsertSnippets(ctx, "a.md", "v1", testEntries())
	require.NoError(t, err)
	assert.False(t, skipped)
}

func TestIndex_Stats(t *testing.T) {
	ctx := context.Background()
	ix := New(kvstore.NewMemoryStore())

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.SnippetCount)

	_, err = ix.UpsertSnippets(ctx, "a.md", "v1", testEntries())
	require.NoError(t, err)
	_, err = ix.UpsertSnippets(ctx, "b.md", "v1", testEntries()[:1])
	require.NoError(t, err)

	stats, err = ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.SnippetCount)
	assert.Equal(t, 2, stats.OriginCount)
	assert.Positive(t, stats.ApproxSizeBytes)
}

func TestRecord_RoundTrip(t *testing.T) {
	entries := testEntries()
	s := model.Snippet{
		ID:     7,
		Origin: "results.md",
		Text:   entries[0].Text,
		Lines:  entries[0].Lines,
	}

	frame, err := codec.Encode(encodeRecord(s, entries[0].Vector), codec.LZ4)
	require.NoError(t, err)

	rec, err := decodeRecord(frame)
	require.NoError(t, err)
	assert.Equal(t, s.ID, rec.snippet.ID)
	assert.Equal(t, s.Origin, rec.snippet.Origin)
	assert.Equal(t, s.Text, rec.snippet.Text)
	assert.Equal(t, s.Lines, rec.snippet.Lines)
	assert.Len(t, rec.vec.Codes, len(entries[0].Vector))
}
