package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/evidgo/evidgo/codec"
	"github.com/evidgo/evidgo/distance"
	"github.com/evidgo/evidgo/fingerprint"
	"github.com/evidgo/evidgo/kvstore"
)

// DefaultMaxSize bounds the in-memory tier when no size is configured.
const DefaultMaxSize = 1024

// Cache is a two-tier embedding cache: a bounded in-memory LRU in front of
// an optional durable key-value store, keyed by text fingerprint.
//
// Embedding the same text twice never issues a second provider call and
// always returns identical vectors. The memory tier never exceeds its
// configured size after any public operation completes.
type Cache struct {
	provider    Provider
	memory      *lru.Cache[string, []float32]
	disk        kvstore.Store
	compression codec.Compression
	maxSize     int
	logger      *slog.Logger
	flight      singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithMaxSize bounds the in-memory tier and the number of entries loaded
// from disk on construction.
func WithMaxSize(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithDiskStore attaches a durable tier. The store is best-effort: corrupt
// or unreadable entries are skipped, write failures are logged.
func WithDiskStore(store kvstore.Store) CacheOption {
	return func(c *Cache) { c.disk = store }
}

// WithCompression selects the codec compression for persisted entries.
func WithCompression(comp codec.Compression) CacheOption {
	return func(c *Cache) { c.compression = comp }
}

// WithCacheLogger sets the logger used for swallowed storage errors.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a Cache over the given provider and warms the memory
// tier from the disk store, bounded by the configured maximum size.
//
// A failure to read an individual persisted entry never aborts
// construction; the entry is skipped and logged.
func NewCache(ctx context.Context, provider Provider, opts ...CacheOption) (*Cache, error) {
	c := &Cache{
		provider:    provider,
		compression: codec.LZ4,
		maxSize:     DefaultMaxSize,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	memory, err := lru.New[string, []float32](c.maxSize)
	if err != nil {
		return nil, err
	}
	c.memory = memory

	if c.disk != nil {
		c.warmFromDisk(ctx)
	}
	return c, nil
}

func (c *Cache) warmFromDisk(ctx context.Context) {
	keys, err := c.disk.List(ctx, "")
	if err != nil {
		c.logger.Warn("embedding cache: listing disk tier failed", "error", err)
		return
	}

	loaded := 0
	for _, key := range keys {
		if loaded >= c.maxSize {
			break
		}
		vec, err := c.loadDisk(ctx, key)
		if err != nil {
			c.logger.Warn("embedding cache: skipping disk entry", "key", key, "error", err)
			continue
		}
		c.memory.Add(key, vec)
		loaded++
	}
}

// Fingerprint returns the cache key for text.
func (c *Cache) Fingerprint(text string) string {
	return fingerprint.Text(text)
}

// Embed returns the embedding vector for text, consulting the memory tier,
// then the disk tier, then the provider. Provider errors propagate.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	fp := fingerprint.Text(text)

	if vec, ok := c.memory.Get(fp); ok {
		return slices.Clone(vec), nil
	}

	// Concurrent misses for the same fingerprint share one provider call.
	v, err, _ := c.flight.Do(fp, func() (any, error) {
		if vec, ok := c.memory.Get(fp); ok {
			return vec, nil
		}

		if c.disk != nil {
			vec, err := c.loadDisk(ctx, fp)
			if err == nil {
				c.memory.Add(fp, vec)
				return vec, nil
			}
			if !errors.Is(err, kvstore.ErrNotFound) {
				c.logger.Warn("embedding cache: disk read failed", "key", fp, "error", err)
			}
		}

		vec, err := c.provider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}

		c.storeDisk(ctx, fp, vec)
		c.memory.Add(fp, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]float32)), nil
}

// EmbedBatch returns one vector per input text, in input order. Uncached
// texts are fetched with a single provider call; duplicates within the
// batch are embedded once.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results, fps, missTexts, missFPs := c.partition(ctx, texts)

	if len(missTexts) > 0 {
		fetched, err := c.fetch(ctx, missTexts, missFPs)
		if err != nil {
			return nil, err
		}
		fill(results, fps, fetched)
	}
	return results, nil
}

// EmbedBatchThrottled behaves like EmbedBatch but splits the uncached
// subset into groups of at most groupSize texts, issued sequentially, to
// respect provider rate limits. Result ordering matches the input
// regardless of which texts were cache hits.
func (c *Cache) EmbedBatchThrottled(ctx context.Context, texts []string, groupSize int) ([][]float32, error) {
	if groupSize <= 0 {
		return c.EmbedBatch(ctx, texts)
	}

	results, fps, missTexts, missFPs := c.partition(ctx, texts)

	fetched := make(map[string][]float32, len(missTexts))
	for start := 0; start < len(missTexts); start += groupSize {
		end := min(start+groupSize, len(missTexts))

		group, err := c.fetch(ctx, missTexts[start:end], missFPs[start:end])
		if err != nil {
			return nil, err
		}
		for fp, vec := range group {
			fetched[fp] = vec
		}
	}

	fill(results, fps, fetched)
	return results, nil
}

// partition resolves cache hits and collects the deduplicated miss set.
func (c *Cache) partition(ctx context.Context, texts []string) (results [][]float32, fps []string, missTexts, missFPs []string) {
	results = make([][]float32, len(texts))
	fps = make([]string, len(texts))
	seen := make(map[string]struct{})

	for i, text := range texts {
		fp := fingerprint.Text(text)
		fps[i] = fp

		if vec, ok := c.memory.Get(fp); ok {
			results[i] = slices.Clone(vec)
			continue
		}
		if c.disk != nil {
			if vec, err := c.loadDisk(ctx, fp); err == nil {
				c.memory.Add(fp, vec)
				results[i] = slices.Clone(vec)
				continue
			}
		}
		if _, dup := seen[fp]; !dup {
			seen[fp] = struct{}{}
			missTexts = append(missTexts, text)
			missFPs = append(missFPs, fp)
		}
	}
	return results, fps, missTexts, missFPs
}

// fetch embeds the given texts with one provider call and populates both
// cache tiers.
func (c *Cache) fetch(ctx context.Context, texts, fps []string) (map[string][]float32, error) {
	vecs, err := c.provider.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, NewProviderError("embed_many",
			fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
	}

	fetched := make(map[string][]float32, len(texts))
	for i, fp := range fps {
		c.storeDisk(ctx, fp, vecs[i])
		c.memory.Add(fp, vecs[i])
		fetched[fp] = vecs[i]
	}
	return fetched, nil
}

func fill(results [][]float32, fps []string, fetched map[string][]float32) {
	for i := range results {
		if results[i] == nil {
			if vec, ok := fetched[fps[i]]; ok {
				results[i] = slices.Clone(vec)
			}
		}
	}
}

// TrimCache evicts least-recently-used entries until at most target remain.
// Recently accessed entries survive in preference to untouched ones.
func (c *Cache) TrimCache(target int) {
	if target < 0 {
		target = 0
	}
	for c.memory.Len() > target {
		c.memory.RemoveOldest()
	}
}

// Len returns the number of entries in the memory tier.
func (c *Cache) Len() int {
	return c.memory.Len()
}

// Contains reports whether text is cached in the memory tier, without
// promoting it.
func (c *Cache) Contains(text string) bool {
	return c.memory.Contains(fingerprint.Text(text))
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors
// of different length are a validation error; zero vectors yield 0.
func (c *Cache) CosineSimilarity(a, b []float32) (float64, error) {
	return distance.Cosine(a, b)
}

func (c *Cache) loadDisk(ctx context.Context, key string) ([]float32, error) {
	data, err := c.disk.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decode(data)
	if err != nil {
		return nil, kvstore.NewStorageError("decode", key, err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, kvstore.NewStorageError("decode", key, err)
	}
	return vec, nil
}

// storeDisk persists a vector best-effort: failures are logged, never
// surfaced, since the in-memory result is already correct.
func (c *Cache) storeDisk(ctx context.Context, key string, vec []float32) {
	if c.disk == nil {
		return
	}
	frame, err := codec.Encode(encodeVector(vec), c.compression)
	if err != nil {
		c.logger.Warn("embedding cache: encode failed", "key", key, "error", err)
		return
	}
	if err := c.disk.Put(ctx, key, frame); err != nil {
		c.logger.Warn("embedding cache: disk write failed", "key", key, "error", err)
	}
}

// encodeVector serializes a vector losslessly.
// Format (little-endian): [n:uint32][element:float32]*n
func encodeVector(vec []float32) []byte {
	b := make([]byte, 4+4*len(vec))
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(vec)))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(b[4+4*i:], math.Float32bits(x))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b) < 4 {
		return nil, errors.New("vector entry too short")
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	if uint32(len(b)-4) != 4*n {
		return nil, errors.New("vector entry length mismatch")
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4+4*i:]))
	}
	return vec, nil
}
