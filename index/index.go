package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/singleflight"

	"github.com/evidgo/evidgo/codec"
	"github.com/evidgo/evidgo/kvstore"
	"github.com/evidgo/evidgo/model"
	"github.com/evidgo/evidgo/quantization"
)

// ErrInvalidLimit is returned when a query limit is not positive.
var ErrInvalidLimit = errors.New("limit must be positive")

const (
	snippetKeyPrefix = "snip-"
	originKeyPrefix  = "orig-"
)

// Entry is one snippet to be indexed, already embedded by the caller.
type Entry struct {
	Text   string
	Lines  model.LineRange
	Vector []float32
}

// Index is a durable collection of (vector, metadata) records supporting
// upsert-by-origin and k-nearest-neighbor queries.
//
// The persisted records are loaded lazily on first use; concurrent first
// callers share one in-flight initialization. Mutations are serialized and
// atomic with respect to readers.
type Index struct {
	store       kvstore.Store
	compression codec.Compression
	logger      *slog.Logger

	flight singleflight.Group
	loaded atomic.Bool

	mu         sync.RWMutex
	rows       map[model.SnippetID]*record
	originRows map[string]*roaring.Bitmap
	originHash map[string]string
	nextID     model.SnippetID
}

type record struct {
	snippet model.Snippet
	vec     quantization.Quantized
}

// Option configures an Index.
type Option func(*Index)

// WithCompression selects the codec compression for persisted records.
func WithCompression(comp codec.Compression) Option {
	return func(ix *Index) { ix.compression = comp }
}

// WithLogger sets the logger used for skipped records and best-effort
// storage failures.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// New creates an Index persisting to store. The store's contents are not
// read until the first operation.
func New(store kvstore.Store, opts ...Option) *Index {
	ix := &Index{
		store:       store,
		compression: codec.LZ4,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		rows:        make(map[model.SnippetID]*record),
		originRows:  make(map[string]*roaring.Bitmap),
		originHash:  make(map[string]string),
		nextID:      1,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// ensureLoaded performs the one-time load of persisted records. Concurrent
// first callers await the same in-flight initialization.
func (ix *Index) ensureLoaded(ctx context.Context) error {
	if ix.loaded.Load() {
		return nil
	}
	_, err, _ := ix.flight.Do("init", func() (any, error) {
		if ix.loaded.Load() {
			return nil, nil
		}
		if err := ix.load(ctx); err != nil {
			return nil, err
		}
		ix.loaded.Store(true)
		return nil, nil
	})
	return err
}

func (ix *Index) load(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Origin metas first: each one names the record IDs making up the
	// origin's current set. Records outside every member list are
	// leftovers of a failed delete and must not come back.
	originKeys, err := ix.store.List(ctx, originKeyPrefix)
	if err != nil {
		return kvstore.NewStorageError("list", originKeyPrefix, err)
	}
	members := make(map[model.SnippetID]string)
	for _, key := range originKeys {
		data, err := ix.store.Get(ctx, key)
		if err != nil {
			ix.logger.Warn("index: skipping unreadable origin meta", "key", key, "error", err)
			continue
		}
		origin, hash, ids, err := decodeOriginMeta(data)
		if err != nil {
			ix.logger.Warn("index: skipping corrupt origin meta", "key", key, "error", err)
			continue
		}
		ix.originHash[origin] = hash
		for _, id := range ids {
			members[id] = origin
		}
	}

	keys, err := ix.store.List(ctx, snippetKeyPrefix)
	if err != nil {
		return kvstore.NewStorageError("list", snippetKeyPrefix, err)
	}
	for _, key := range keys {
		data, err := ix.store.Get(ctx, key)
		if err != nil {
			ix.logger.Warn("index: skipping unreadable record", "key", key, "error", err)
			continue
		}
		rec, err := decodeRecord(data)
		if err != nil {
			ix.logger.Warn("index: skipping corrupt record", "key", key, "error", err)
			continue
		}
		if members[rec.snippet.ID] != rec.snippet.Origin {
			ix.logger.Warn("index: dropping stale record", "key", key, "origin", rec.snippet.Origin)
			if err := ix.store.Delete(ctx, key); err != nil {
				ix.logger.Warn("index: deleting stale record failed", "key", key, "error", err)
			}
			continue
		}
		ix.insertLocked(rec)
	}

	return nil
}

func (ix *Index) insertLocked(rec *record) {
	ix.rows[rec.snippet.ID] = rec

	rows, ok := ix.originRows[rec.snippet.Origin]
	if !ok {
		rows = roaring.New()
		ix.originRows[rec.snippet.Origin] = rows
	}
	rows.Add(uint32(rec.snippet.ID))

	if rec.snippet.ID >= ix.nextID {
		ix.nextID = rec.snippet.ID + 1
	}
}

// HasChanged reports whether originContent differs from the content last
// indexed for origin.
func (ix *Index) HasChanged(ctx context.Context, origin, originContent string) (bool, error) {
	if err := ix.ensureLoaded(ctx); err != nil {
		return false, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.originHash[origin] != contentHash(originContent), nil
}

// UpsertSnippets replaces the snippet set for origin with entries.
//
// When originContent is unchanged since the last indexing of origin, the
// call is a no-op and reports skipped=true. Otherwise the replacement is
// atomic: a concurrent Query sees either the old set or the new set,
// never a mix.
func (ix *Index) UpsertSnippets(ctx context.Context, origin, originContent string, entries []Entry) (skipped bool, err error) {
	if err := ix.ensureLoaded(ctx); err != nil {
		return false, err
	}

	hash := contentHash(originContent)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.originHash[origin] == hash {
		return true, nil
	}

	// Persist the new records first; their IDs are fresh, so a failure
	// here leaves the old state fully intact.
	now := time.Now()
	recs := make([]*record, len(entries))
	for i, e := range entries {
		recs[i] = &record{
			snippet: model.Snippet{
				ID:         ix.nextID + model.SnippetID(i),
				Origin:     origin,
				Text:       e.Text,
				Lines:      e.Lines,
				InsertedAt: now,
			},
			vec: quantization.Quantize(e.Vector),
		}
		frame, err := codec.Encode(encodeRecord(recs[i].snippet, e.Vector), ix.compression)
		if err != nil {
			return false, kvstore.NewStorageError("encode", snippetKey(recs[i].snippet.ID), err)
		}
		if err := ix.store.Put(ctx, snippetKey(recs[i].snippet.ID), frame); err != nil {
			return false, kvstore.NewStorageError("put", snippetKey(recs[i].snippet.ID), err)
		}
	}

	ids := make([]model.SnippetID, len(recs))
	for i, rec := range recs {
		ids[i] = rec.snippet.ID
	}
	metaFrame, err := codec.Encode(encodeOriginMeta(origin, hash, ids), ix.compression)
	if err != nil {
		return false, kvstore.NewStorageError("encode", originKey(origin), err)
	}
	if err := ix.store.Put(ctx, originKey(origin), metaFrame); err != nil {
		return false, kvstore.NewStorageError("put", originKey(origin), err)
	}

	// Remove the replaced records, best-effort: stale files are ignored
	// on load once the origin meta points at the new set.
	if old, ok := ix.originRows[origin]; ok {
		it := old.Iterator()
		for it.HasNext() {
			id := model.SnippetID(it.Next())
			delete(ix.rows, id)
			if err := ix.store.Delete(ctx, snippetKey(id)); err != nil {
				ix.logger.Warn("index: deleting replaced record failed",
					"key", snippetKey(id), "error", err)
			}
		}
		delete(ix.originRows, origin)
	}

	for _, rec := range recs {
		ix.insertLocked(rec)
	}
	ix.nextID += model.SnippetID(len(entries))
	ix.originHash[origin] = hash

	return false, nil
}

// Query returns up to limit snippets ordered by descending similarity to
// vec. An empty index yields an empty result, not an error.
func (ix *Index) Query(ctx context.Context, vec []float32, limit int) ([]model.ScoredSnippet, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if err := ix.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.rows) == 0 {
		return []model.ScoredSnippet{}, nil
	}

	recs := make([]*record, 0, len(ix.rows))
	docs := make([]quantization.Quantized, 0, len(ix.rows))
	for _, rec := range ix.rows {
		recs = append(recs, rec)
		docs = append(docs, rec.vec)
	}

	sims := quantization.BatchSimilarity(vec, docs)

	scored := make([]model.ScoredSnippet, len(recs))
	for i, rec := range recs {
		scored[i] = model.ScoredSnippet{Snippet: rec.snippet, Similarity: sims[i]}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// SnippetsForOrigin returns the snippets currently indexed for origin.
func (ix *Index) SnippetsForOrigin(ctx context.Context, origin string) ([]model.Snippet, error) {
	if err := ix.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rows, ok := ix.originRows[origin]
	if !ok {
		return []model.Snippet{}, nil
	}

	out := make([]model.Snippet, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		if rec, ok := ix.rows[model.SnippetID(it.Next())]; ok {
			out = append(out, rec.snippet)
		}
	}
	return out, nil
}

// AllSnippets returns every indexed snippet, ordered by ID.
func (ix *Index) AllSnippets(ctx context.Context) ([]model.Snippet, error) {
	if err := ix.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]model.Snippet, 0, len(ix.rows))
	for _, rec := range ix.rows {
		out = append(out, rec.snippet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Clear removes every snippet and origin record.
func (ix *Index) Clear(ctx context.Context) error {
	if err := ix.ensureLoaded(ctx); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, prefix := range []string{snippetKeyPrefix, originKeyPrefix} {
		keys, err := ix.store.List(ctx, prefix)
		if err != nil {
			return kvstore.NewStorageError("list", prefix, err)
		}
		for _, key := range keys {
			if err := ix.store.Delete(ctx, key); err != nil {
				ix.logger.Warn("index: clear failed for key", "key", key, "error", err)
			}
		}
	}

	ix.rows = make(map[model.SnippetID]*record)
	ix.originRows = make(map[string]*roaring.Bitmap)
	ix.originHash = make(map[string]string)
	ix.nextID = 1
	return nil
}

// Stats summarizes the index contents.
func (ix *Index) Stats(ctx context.Context) (model.IndexStats, error) {
	if err := ix.ensureLoaded(ctx); err != nil {
		return model.IndexStats{}, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var size int64
	for _, rec := range ix.rows {
		// Quantized codes plus text plus fixed record overhead.
		size += int64(len(rec.vec.Codes)) + int64(len(rec.snippet.Text)) + 64
	}
	for origin, rows := range ix.originRows {
		size += int64(len(origin)) + int64(rows.GetSizeInBytes())
	}

	return model.IndexStats{
		SnippetCount:    len(ix.rows),
		OriginCount:     len(ix.originRows),
		ApproxSizeBytes: size,
	}, nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func snippetKey(id model.SnippetID) string {
	return snippetKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

func originKey(origin string) string {
	sum := sha256.Sum256([]byte(origin))
	return originKeyPrefix + hex.EncodeToString(sum[:])
}
