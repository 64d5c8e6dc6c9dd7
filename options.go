package evidgo

import (
	"github.com/evidgo/evidgo/codec"
	"github.com/evidgo/evidgo/embedding"
	"github.com/evidgo/evidgo/kvstore"
	"github.com/evidgo/evidgo/scoring"
)

const (
	// DefaultGroupSize bounds how many uncached texts are sent to the
	// provider per batched call during document indexing.
	DefaultGroupSize = 16

	// DefaultIndexWorkers bounds how many origins are indexed concurrently
	// by IndexDocuments.
	DefaultIndexWorkers = 4

	// DefaultSnippetLines is the maximum number of lines per indexed
	// snippet when splitting a source document.
	DefaultSnippetLines = 12
)

type engineConfig struct {
	logger  *Logger
	metrics MetricsCollector

	cacheSize  int
	cacheStore kvstore.Store
	indexStore kvstore.Store

	compression codec.Compression

	lexicon                *scoring.Lexicon
	supportThreshold       float64
	contradictionThreshold float64
	minSources             int

	rateLimit float64
	rateBurst int

	groupSize    int
	indexWorkers int
	snippetLines int
}

func defaultConfig() engineConfig {
	return engineConfig{
		logger:                 NoopLogger(),
		metrics:                NoopMetricsCollector{},
		cacheSize:              embedding.DefaultMaxSize,
		compression:            codec.LZ4,
		supportThreshold:       scoring.DefaultSupportThreshold,
		contradictionThreshold: scoring.DefaultContradictionThreshold,
		groupSize:              DefaultGroupSize,
		indexWorkers:           DefaultIndexWorkers,
		snippetLines:           DefaultSnippetLines,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the engine's logger.
func WithLogger(logger *Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsCollector sets the metrics sink.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithMaxCacheSize bounds the in-memory embedding cache.
func WithMaxCacheSize(n int) Option {
	return func(c *engineConfig) { c.cacheSize = n }
}

// WithCacheStore attaches a durable tier to the embedding cache.
func WithCacheStore(store kvstore.Store) Option {
	return func(c *engineConfig) { c.cacheStore = store }
}

// WithIndexStore sets where the vector index persists its records. When
// unset, the index lives in process memory only.
func WithIndexStore(store kvstore.Store) Option {
	return func(c *engineConfig) { c.indexStore = store }
}

// WithCompression selects the block compression for persisted cache
// entries and index records.
func WithCompression(comp codec.Compression) Option {
	return func(c *engineConfig) { c.compression = comp }
}

// WithLexicon replaces the contradiction lexicon.
func WithLexicon(l *scoring.Lexicon) Option {
	return func(c *engineConfig) { c.lexicon = l }
}

// WithSimilarityThreshold sets the similarity floor for both corroboration
// and contradiction detection.
func WithSimilarityThreshold(t float64) Option {
	return func(c *engineConfig) {
		c.supportThreshold = t
		c.contradictionThreshold = t
	}
}

// WithMinSources sets how many independent sources ValidateClaim requires.
func WithMinSources(n int) Option {
	return func(c *engineConfig) { c.minSources = n }
}

// WithRateLimit wraps the provider so calls never exceed rps requests per
// second, with the given burst. Rate-limited calls back off and retry.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *engineConfig) {
		c.rateLimit = rps
		c.rateBurst = burst
	}
}

// WithGroupSize bounds the per-call batch size used while indexing.
func WithGroupSize(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.groupSize = n
		}
	}
}

// WithIndexWorkers bounds how many origins IndexDocuments embeds and
// indexes concurrently.
func WithIndexWorkers(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.indexWorkers = n
		}
	}
}

// WithSnippetLines caps the number of lines per indexed snippet.
func WithSnippetLines(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.snippetLines = n
		}
	}
}
