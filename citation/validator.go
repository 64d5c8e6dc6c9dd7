// Package citation validates author-year citations mentioned in claim text
// against the quote evidence actually attached to the claim.
package citation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/evidgo/evidgo/model"
)

// citationPattern matches author-year mentions such as "Johnson 2007",
// "Johnson, 2007", "Johnson (2007)" and "Johnson et al. (2007)".
var citationPattern = regexp.MustCompile(
	`\b([A-Z][A-Za-z]+)(?:\s+(?:et\s+al\.?|and\s+[A-Z][A-Za-z]+|&\s+[A-Z][A-Za-z]+))?[\s,]*\(?((?:19|20)\d{2})\)?`)

// yearPattern backs NormalizeAuthorYear for keys already close to
// canonical form, e.g. "Johnson2007" or "johnson-2007".
var yearPattern = regexp.MustCompile(`([A-Za-z]+)[^A-Za-z0-9]*((?:19|20)\d{2})`)

const (
	defaultExpiration = 10 * time.Minute
	cleanupInterval   = 30 * time.Minute
)

// Validator checks that every citation a claim mentions is backed by an
// attached quote from that source. Results are cached per claim and
// invalidated wholesale when the manuscript content changes.
type Validator struct {
	claims model.ClaimStore
	mapper model.SourceMapper
	logger *slog.Logger

	results *gocache.Cache

	mu          sync.Mutex
	contentHash string
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the validator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithExpiration overrides how long cached validation results live.
func WithExpiration(d time.Duration) Option {
	return func(v *Validator) {
		v.results = gocache.New(d, cleanupInterval)
	}
}

// NewValidator creates a Validator over the given claim store and source
// mapper.
func NewValidator(claims model.ClaimStore, mapper model.SourceMapper, opts ...Option) *Validator {
	v := &Validator{
		claims:  claims,
		mapper:  mapper,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		results: gocache.New(defaultExpiration, cleanupInterval),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ExtractCitations returns the author-year keys mentioned in text, in
// first-occurrence order, deduplicated.
func ExtractCitations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		key := m[1] + m[2]
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// NormalizeAuthorYear canonicalizes an author-year key: "Johnson, 2007",
// "johnson 2007" and "Johnson2007" all normalize to "Johnson2007". Keys
// without a recognizable author and year are returned trimmed.
func NormalizeAuthorYear(s string) string {
	if m := yearPattern.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1][:1]) + m[1][1:] + m[2]
	}
	return strings.TrimSpace(s)
}

// ValidateCitations classifies every citation mentioned in the claim's
// text. An unknown claim yields a single missing-claim result.
func (v *Validator) ValidateCitations(ctx context.Context, id model.ClaimID) ([]model.CitationResult, error) {
	if cached, ok := v.results.Get(string(id)); ok {
		return cached.([]model.CitationResult), nil
	}

	claim, err := v.claims.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return []model.CitationResult{{ClaimID: id, Status: model.CitationMissingClaim}}, nil
	}

	cited := quotedSources(claim)
	hasQuotes := claim.PrimaryQuote != nil || len(claim.SupportingQuotes) > 0

	keys := ExtractCitations(claim.Text)
	results := make([]model.CitationResult, 0, len(keys))
	for _, key := range keys {
		result := model.CitationResult{ClaimID: id, AuthorYear: key}

		mapping, err := v.mapper.GetSourceMapping(ctx, key)
		if err != nil {
			return nil, err
		}
		switch {
		case mapping == nil:
			result.Status = model.CitationUnmappedSource
		case !hasQuotes:
			result.Status = model.CitationMissingQuote
		case cited[key]:
			result.Status = model.CitationMatched
		default:
			result.Status = model.CitationOrphan
		}
		results = append(results, result)
	}

	v.results.Set(string(id), results, gocache.DefaultExpiration)
	return results, nil
}

// quotedSources collects the normalized author-year keys of every quote
// attached to the claim.
func quotedSources(claim *model.Claim) map[string]bool {
	cited := make(map[string]bool)
	if claim.PrimaryQuote != nil {
		cited[NormalizeAuthorYear(claim.PrimaryQuote.AuthorYear)] = true
	}
	for _, q := range claim.SupportingQuotes {
		cited[NormalizeAuthorYear(q.AuthorYear)] = true
	}
	delete(cited, "")
	return cited
}

// OrphanCitations sweeps every claim and returns the citations that are
// mapped to a source but backed by no attached quote.
func (v *Validator) OrphanCitations(ctx context.Context) ([]model.CitationResult, error) {
	claims, err := v.claims.GetAllClaims(ctx)
	if err != nil {
		return nil, err
	}

	var orphans []model.CitationResult
	for _, claim := range claims {
		results, err := v.ValidateCitations(ctx, claim.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.Status == model.CitationOrphan {
				orphans = append(orphans, r)
			}
		}
	}
	return orphans, nil
}

// IsOrphanCitation reports whether the claim cites authorYear without any
// attached quote from that source.
func (v *Validator) IsOrphanCitation(ctx context.Context, id model.ClaimID, authorYear string) (bool, error) {
	results, err := v.ValidateCitations(ctx, id)
	if err != nil {
		return false, err
	}

	key := NormalizeAuthorYear(authorYear)
	for _, r := range results {
		if r.AuthorYear == key {
			return r.Status == model.CitationOrphan, nil
		}
	}
	return false, nil
}

// InvalidateOnManuscriptChange flushes all cached results when the
// manuscript content hash differs from the last one seen.
func (v *Validator) InvalidateOnManuscriptChange(content string) {
	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.contentHash == hash {
		return
	}
	if v.contentHash != "" {
		v.logger.Debug("citation: manuscript changed, flushing cached results")
	}
	v.contentHash = hash
	v.results.Flush()
}
