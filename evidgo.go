package evidgo

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evidgo/evidgo/citation"
	"github.com/evidgo/evidgo/embedding"
	"github.com/evidgo/evidgo/index"
	"github.com/evidgo/evidgo/kvstore"
	"github.com/evidgo/evidgo/model"
	"github.com/evidgo/evidgo/scoring"
)

// Engine ties the embedding cache, vector index, strength scorer and
// citation validator together behind one API.
type Engine struct {
	cache     *embedding.Cache
	index     *index.Index
	scorer    *scoring.Scorer
	citations *citation.Validator

	logger  *Logger
	metrics MetricsCollector
	cfg     engineConfig
}

// New creates an Engine. The provider embeds text; claims and mapper are
// owned by the surrounding application and are only read.
func New(ctx context.Context, provider embedding.Provider, claims model.ClaimStore, mapper model.SourceMapper, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Metering wraps the raw provider so every upstream call is counted,
	// including the retries the throttle layer issues.
	provider = &meteredProvider{inner: provider, metrics: cfg.metrics}
	if cfg.rateLimit > 0 {
		provider = embedding.NewThrottled(provider, cfg.rateLimit, cfg.rateBurst)
	}

	cacheOpts := []embedding.CacheOption{
		embedding.WithMaxSize(cfg.cacheSize),
		embedding.WithCompression(cfg.compression),
		embedding.WithCacheLogger(cfg.logger.Logger),
	}
	if cfg.cacheStore != nil {
		cacheOpts = append(cacheOpts, embedding.WithDiskStore(cfg.cacheStore))
	}
	cache, err := embedding.NewCache(ctx, provider, cacheOpts...)
	if err != nil {
		return nil, err
	}

	indexStore := cfg.indexStore
	if indexStore == nil {
		indexStore = kvstore.NewMemoryStore()
	}
	ix := index.New(indexStore,
		index.WithCompression(cfg.compression),
		index.WithLogger(cfg.logger.Logger),
	)

	scorerOpts := []scoring.ScorerOption{
		scoring.WithSupportThreshold(cfg.supportThreshold),
		scoring.WithContradictionThreshold(cfg.contradictionThreshold),
		scoring.WithLogger(cfg.logger.Logger),
	}
	if cfg.lexicon != nil {
		scorerOpts = append(scorerOpts, scoring.WithLexicon(cfg.lexicon))
	}

	return &Engine{
		cache:     cache,
		index:     ix,
		scorer:    scoring.NewScorer(claims, cache, scorerOpts...),
		citations: citation.NewValidator(claims, mapper, citation.WithLogger(cfg.logger.Logger)),
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		cfg:       cfg,
	}, nil
}

// meteredProvider reports every provider call to the metrics sink.
type meteredProvider struct {
	inner   embedding.Provider
	metrics MetricsCollector
}

func (p *meteredProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := p.inner.Embed(ctx, text)
	p.metrics.RecordProviderCall(1, time.Since(start), err)
	return vec, err
}

func (p *meteredProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := p.inner.EmbedMany(ctx, texts)
	p.metrics.RecordProviderCall(len(texts), time.Since(start), err)
	return vecs, err
}

// Embed returns the embedding vector for text, served from cache when
// possible.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	hit := e.cache.Contains(text)

	vec, err := e.cache.Embed(ctx, text)
	err = translateError(err)

	e.metrics.RecordEmbed(hit, time.Since(start), err)
	e.logger.LogEmbed(ctx, e.cache.Fingerprint(text), hit, err)
	return vec, err
}

// EmbedBatch returns one vector per text, in input order.
func (e *Engine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	misses := 0
	for _, text := range texts {
		if !e.cache.Contains(text) {
			misses++
		}
	}

	vecs, err := e.cache.EmbedBatchThrottled(ctx, texts, e.cfg.groupSize)
	err = translateError(err)

	e.logger.LogEmbedBatch(ctx, len(texts), misses, err)
	return vecs, err
}

// IndexDocument splits content into snippets, embeds them and replaces the
// origin's entry set in the index. Unchanged content is skipped without
// touching the provider.
func (e *Engine) IndexDocument(ctx context.Context, origin, content string) (indexed int, skipped bool, err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordUpsert(indexed, skipped, time.Since(start), err)
		e.logger.LogUpsert(ctx, origin, indexed, skipped, err)
	}()

	changed, err := e.index.HasChanged(ctx, origin, content)
	if err != nil {
		return 0, false, translateError(err)
	}
	if !changed {
		return 0, true, nil
	}

	snippets := splitDocument(content, e.cfg.snippetLines)
	texts := make([]string, len(snippets))
	for i, s := range snippets {
		texts[i] = s.text
	}

	vecs, err := e.cache.EmbedBatchThrottled(ctx, texts, e.cfg.groupSize)
	if err != nil {
		return 0, false, translateError(err)
	}

	entries := make([]index.Entry, len(snippets))
	for i, s := range snippets {
		entries[i] = index.Entry{Text: s.text, Lines: s.lines, Vector: vecs[i]}
	}

	skipped, err = e.index.UpsertSnippets(ctx, origin, content, entries)
	if err != nil {
		return 0, false, translateError(err)
	}
	return len(entries), skipped, nil
}

// IndexDocuments indexes several origins concurrently, bounded by the
// configured worker count. The first failure cancels the remaining work.
func (e *Engine) IndexDocuments(ctx context.Context, docs map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.indexWorkers)

	for origin, content := range docs {
		origin, content := origin, content
		g.Go(func() error {
			_, _, err := e.IndexDocument(ctx, origin, content)
			return err
		})
	}
	return g.Wait()
}

// SearchCorpus embeds the query and returns up to limit snippets ordered
// by descending similarity.
func (e *Engine) SearchCorpus(ctx context.Context, query string, limit int) (results []model.ScoredSnippet, err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordQuery(limit, time.Since(start), err)
		e.logger.LogQuery(ctx, limit, len(results), err)
	}()

	vec, err := e.cache.Embed(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}

	results, err = e.index.Query(ctx, vec, limit)
	if err != nil {
		return nil, translateError(err)
	}
	return results, nil
}

// ClaimStrength scores one claim against the independent corpus.
func (e *Engine) ClaimStrength(ctx context.Context, id model.ClaimID) (model.StrengthResult, error) {
	start := time.Now()

	result, err := e.scorer.CalculateStrength(ctx, id)
	err = translateError(err)

	e.metrics.RecordStrength(time.Since(start), err)
	e.logger.LogStrength(ctx, string(id), len(result.Supporting), len(result.Contradicting), err)
	return result, err
}

// ClaimStrengthBatch scores several claims sharing one pass over the
// corpus embeddings. Unknown IDs are skipped.
func (e *Engine) ClaimStrengthBatch(ctx context.Context, ids []model.ClaimID) ([]model.StrengthResult, error) {
	start := time.Now()

	results, err := e.scorer.CalculateStrengthBatch(ctx, ids)
	err = translateError(err)

	e.metrics.RecordStrength(time.Since(start), err)
	return results, err
}

// DetectContradiction reports whether two texts contradict each other at
// the given similarity.
func (e *Engine) DetectContradiction(a, b string, similarity float64) bool {
	return e.scorer.DetectContradiction(a, b, similarity)
}

// ValidateClaim checks a claim against its own quote evidence. The result
// is advisory and never an error.
func (e *Engine) ValidateClaim(ctx context.Context, id model.ClaimID) model.SupportValidation {
	return e.scorer.ValidateSupport(ctx, id, e.cfg.minSources)
}

// ValidateCitations classifies every author-year mention in the claim.
func (e *Engine) ValidateCitations(ctx context.Context, id model.ClaimID) ([]model.CitationResult, error) {
	results, err := e.citations.ValidateCitations(ctx, id)
	return results, translateError(err)
}

// OrphanCitations returns every citation across the manuscript that is
// mapped to a source but backed by no attached quote.
func (e *Engine) OrphanCitations(ctx context.Context) ([]model.CitationResult, error) {
	results, err := e.citations.OrphanCitations(ctx)
	return results, translateError(err)
}

// ManuscriptChanged invalidates cached citation verdicts when the
// manuscript content differs from the last version seen.
func (e *Engine) ManuscriptChanged(content string) {
	e.citations.InvalidateOnManuscriptChange(content)
}

// SnippetsForOrigin returns the snippets currently indexed for origin.
func (e *Engine) SnippetsForOrigin(ctx context.Context, origin string) ([]model.Snippet, error) {
	snippets, err := e.index.SnippetsForOrigin(ctx, origin)
	return snippets, translateError(err)
}

// Stats summarizes the index contents.
func (e *Engine) Stats(ctx context.Context) (model.IndexStats, error) {
	stats, err := e.index.Stats(ctx)
	return stats, translateError(err)
}

// ClearIndex removes every indexed snippet.
func (e *Engine) ClearIndex(ctx context.Context) error {
	return translateError(e.index.Clear(ctx))
}

// TrimCache evicts least-recently-used embedding cache entries until at
// most target remain.
func (e *Engine) TrimCache(target int) {
	e.cache.TrimCache(target)
}

// CacheLen returns the number of entries in the embedding cache's memory
// tier.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}
