package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/evidgo/evidgo/embedding"
	"github.com/evidgo/evidgo/model"
)

// ErrClaimNotFound is returned when a claim ID is unknown to the store.
var ErrClaimNotFound = errors.New("claim not found")

const (
	// DefaultSupportThreshold is the minimum similarity for an independent
	// claim to count as corroborating.
	DefaultSupportThreshold = 0.7

	// DefaultContradictionThreshold is the minimum similarity at which two
	// claims are considered to address the same point, making lexical
	// opposition meaningful.
	DefaultContradictionThreshold = 0.7
)

// Scorer computes evidential strength for claims.
type Scorer struct {
	claims  model.ClaimStore
	cache   *embedding.Cache
	lexicon *matcher

	supportThreshold       float64
	contradictionThreshold float64
	logger                 *slog.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithLexicon replaces the default contradiction lexicon.
func WithLexicon(l *Lexicon) ScorerOption {
	return func(s *Scorer) {
		if l != nil {
			s.lexicon = compileLexicon(l)
		}
	}
}

// WithSupportThreshold overrides the similarity floor for corroboration.
func WithSupportThreshold(t float64) ScorerOption {
	return func(s *Scorer) { s.supportThreshold = t }
}

// WithContradictionThreshold overrides the similarity floor for
// contradiction detection.
func WithContradictionThreshold(t float64) ScorerOption {
	return func(s *Scorer) { s.contradictionThreshold = t }
}

// WithLogger sets the scorer's logger.
func WithLogger(logger *slog.Logger) ScorerOption {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScorer creates a Scorer over the given claim store and embedding cache.
func NewScorer(claims model.ClaimStore, cache *embedding.Cache, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		claims:                 claims,
		cache:                  cache,
		lexicon:                compileLexicon(DefaultLexicon()),
		supportThreshold:       DefaultSupportThreshold,
		contradictionThreshold: DefaultContradictionThreshold,
		logger:                 slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CalculateStrength scores one claim against every independent claim in the
// corpus. Claims sharing the target's source never corroborate it.
func (s *Scorer) CalculateStrength(ctx context.Context, id model.ClaimID) (model.StrengthResult, error) {
	target, err := s.claims.GetClaim(ctx, id)
	if err != nil {
		return model.StrengthResult{}, err
	}
	if target == nil {
		return model.StrengthResult{}, fmt.Errorf("%w: %s", ErrClaimNotFound, id)
	}

	corpus, vectors, err := s.embedCorpus(ctx)
	if err != nil {
		return model.StrengthResult{}, err
	}
	return s.strengthOf(target, corpus, vectors)
}

// CalculateStrengthBatch scores several claims with one pass over the
// corpus embeddings. Unknown IDs are skipped rather than failing the batch;
// per-claim results are identical to individual CalculateStrength calls.
func (s *Scorer) CalculateStrengthBatch(ctx context.Context, ids []model.ClaimID) ([]model.StrengthResult, error) {
	corpus, vectors, err := s.embedCorpus(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[model.ClaimID]*model.Claim, len(corpus))
	for i := range corpus {
		byID[corpus[i].ID] = &corpus[i]
	}

	results := make([]model.StrengthResult, 0, len(ids))
	for _, id := range ids {
		target, ok := byID[id]
		if !ok {
			s.logger.Warn("scoring: skipping unknown claim", "claim", string(id))
			continue
		}
		result, err := s.strengthOf(target, corpus, vectors)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// embedCorpus fetches every claim and embeds the full corpus in one batch,
// so repeated scoring touches the provider at most once per unique text.
func (s *Scorer) embedCorpus(ctx context.Context) ([]model.Claim, map[model.ClaimID][]float32, error) {
	corpus, err := s.claims.GetAllClaims(ctx)
	if err != nil {
		return nil, nil, err
	}

	texts := make([]string, len(corpus))
	for i, c := range corpus {
		texts[i] = c.Text
	}
	vecs, err := s.cache.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, err
	}

	vectors := make(map[model.ClaimID][]float32, len(corpus))
	for i, c := range corpus {
		vectors[c.ID] = vecs[i]
	}
	return corpus, vectors, nil
}

func (s *Scorer) strengthOf(target *model.Claim, corpus []model.Claim, vectors map[model.ClaimID][]float32) (model.StrengthResult, error) {
	targetVec, ok := vectors[target.ID]
	if !ok {
		return model.StrengthResult{}, fmt.Errorf("%w: %s", ErrClaimNotFound, target.ID)
	}
	targetTokens := tokenize(target.Text)

	result := model.StrengthResult{ClaimID: target.ID}
	for i := range corpus {
		other := &corpus[i]
		if other.ID == target.ID || other.Source == target.Source {
			continue
		}

		sim, err := s.cache.CosineSimilarity(targetVec, vectors[other.ID])
		if err != nil {
			return model.StrengthResult{}, err
		}

		if contradiction, viaSentiment := s.detect(targetTokens, tokenize(other.Text), sim); contradiction {
			result.Contradicting = append(result.Contradicting, model.ContradictionRecord{
				ClaimID:             other.ID,
				Source:              other.Source,
				Similarity:          sim,
				SentimentOpposition: viaSentiment,
			})
			continue
		}
		if sim >= s.supportThreshold {
			result.Supporting = append(result.Supporting, model.SupportRecord{
				ClaimID:    other.ID,
				Source:     other.Source,
				Similarity: sim,
			})
		}
	}

	sort.Slice(result.Supporting, func(i, j int) bool {
		a, b := result.Supporting[i], result.Supporting[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.ClaimID < b.ClaimID
	})
	sort.Slice(result.Contradicting, func(i, j int) bool {
		a, b := result.Contradicting[i], result.Contradicting[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.ClaimID < b.ClaimID
	})

	result.Score = strengthScore(len(result.Supporting))
	return result, nil
}

// strengthScore maps a corroborator count to a strength value with
// logarithmic damping beyond the second source.
func strengthScore(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 1
	case n == 2:
		return 2
	default:
		return 3 + math.Log(float64(n-2))
	}
}

// DetectContradiction reports whether two texts contradict each other.
// Texts whose similarity falls below the contradiction threshold are not
// about the same point and never contradict.
func (s *Scorer) DetectContradiction(a, b string, similarity float64) bool {
	contradiction, _ := s.detect(tokenize(a), tokenize(b), similarity)
	return contradiction
}

func (s *Scorer) detect(a, b map[string]struct{}, similarity float64) (contradiction, viaSentiment bool) {
	if similarity < s.contradictionThreshold {
		return false, false
	}
	return s.lexicon.contradicts(a, b)
}

// ValidateSupport checks a claim against its own quote evidence and the
// breadth of independent corroboration. The result is advisory: failures
// degrade to Supported=false with an explanatory Analysis, never an error.
func (s *Scorer) ValidateSupport(ctx context.Context, id model.ClaimID, minSources int) model.SupportValidation {
	claim, err := s.claims.GetClaim(ctx, id)
	if err != nil {
		return model.SupportValidation{Analysis: fmt.Sprintf("claim lookup failed: %v", err)}
	}
	if claim == nil {
		return model.SupportValidation{Analysis: "claim not found"}
	}

	quote := primaryQuote(claim)
	if quote == nil {
		return model.SupportValidation{Analysis: "no quote evidence attached"}
	}

	vecs, err := s.cache.EmbedBatch(ctx, []string{claim.Text, quote.Text})
	if err != nil {
		return model.SupportValidation{Analysis: fmt.Sprintf("embedding unavailable: %v", err)}
	}
	sim, err := s.cache.CosineSimilarity(vecs[0], vecs[1])
	if err != nil {
		return model.SupportValidation{Analysis: fmt.Sprintf("similarity unavailable: %v", err)}
	}

	strength, err := s.CalculateStrength(ctx, id)
	if err != nil {
		return model.SupportValidation{
			QuoteSimilarity: sim,
			Analysis:        fmt.Sprintf("strength unavailable: %v", err),
		}
	}
	independent := len(strength.Supporting)

	v := model.SupportValidation{QuoteSimilarity: sim}
	switch {
	case sim < 0.6:
		v.Analysis = fmt.Sprintf("quote similarity %.2f is too weak to back the claim", sim)
	case independent < minSources:
		v.Analysis = fmt.Sprintf("only %d of %d required independent sources corroborate the claim", independent, minSources)
	case sim >= 0.75:
		v.Supported = true
		v.Analysis = fmt.Sprintf("strong support: quote similarity %.2f with %d independent sources", sim, independent)
	default:
		v.Supported = true
		v.Analysis = fmt.Sprintf("moderate support: quote similarity %.2f with %d independent sources", sim, independent)
	}
	return v
}

func primaryQuote(claim *model.Claim) *model.Quote {
	if claim.PrimaryQuote != nil {
		return claim.PrimaryQuote
	}
	if len(claim.SupportingQuotes) > 0 {
		return &claim.SupportingQuotes[0]
	}
	return nil
}
