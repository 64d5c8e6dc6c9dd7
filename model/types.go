package model

import (
	"context"
	"time"
)

// ClaimID is the stable identifier of a claim in the manuscript.
type ClaimID string

// SnippetID is a dense identifier for an indexed snippet.
// It is transient and may change when an origin is re-indexed.
type SnippetID uint32

// Quote is a piece of quoted evidence attributed to a source.
type Quote struct {
	Text       string
	AuthorYear string
}

// Claim is a written assertion whose evidential backing is being verified.
// Claims are owned by the surrounding application; this core only reads them.
type Claim struct {
	ID     ClaimID
	Text   string
	Source string

	// PrimaryQuote is the quote the claim is directly derived from, if any.
	PrimaryQuote *Quote

	// SupportingQuotes are additional quotes attached to the claim.
	SupportingQuotes []Quote
}

// LineRange locates a snippet within its origin file.
type LineRange struct {
	Start int
	End   int
}

// Snippet is one indexed passage of a source document.
type Snippet struct {
	ID         SnippetID
	Origin     string
	Text       string
	Lines      LineRange
	InsertedAt time.Time
}

// ScoredSnippet pairs a snippet with its similarity to a query vector.
type ScoredSnippet struct {
	Snippet
	Similarity float64
}

// SupportRecord records one independent claim corroborating a target claim.
type SupportRecord struct {
	ClaimID    ClaimID
	Source     string
	Similarity float64
}

// ContradictionRecord records one independent claim contradicting a target
// claim. SentimentOpposition is set when the contradiction was detected via
// the sentiment lexicons rather than negation or antonym pairs.
type ContradictionRecord struct {
	ClaimID             ClaimID
	Source              string
	Similarity          float64
	SentimentOpposition bool
}

// StrengthResult is the outcome of scoring one claim against the corpus.
type StrengthResult struct {
	ClaimID       ClaimID
	Score         float64
	Supporting    []SupportRecord
	Contradicting []ContradictionRecord
}

// SupportValidation is the advisory result of checking a claim against its
// own quote evidence. It never carries an error; failures degrade to
// Supported=false with an explanatory Analysis.
type SupportValidation struct {
	QuoteSimilarity float64
	Supported       bool
	Analysis        string
}

// CitationStatus classifies one author-year mention found in claim text.
type CitationStatus string

const (
	// CitationMatched means the claim carries quote evidence from that source.
	CitationMatched CitationStatus = "matched"
	// CitationOrphan means the source is known but no attached quote cites it.
	CitationOrphan CitationStatus = "orphan-citation"
	// CitationUnmappedSource means the author-year has no source mapping.
	CitationUnmappedSource CitationStatus = "unmapped-source"
	// CitationMissingClaim means the claim itself does not exist.
	CitationMissingClaim CitationStatus = "missing-claim"
	// CitationMissingQuote means the claim carries no quote evidence at all.
	CitationMissingQuote CitationStatus = "missing-quote"
)

// CitationResult is the validation outcome for one extracted author-year.
type CitationResult struct {
	ClaimID    ClaimID
	AuthorYear string
	Status     CitationStatus
}

// SourceMapping links an author-year key to a source document.
type SourceMapping struct {
	AuthorYear string
	File       string
	Title      string
}

// IndexStats summarizes the current contents of a vector index.
type IndexStats struct {
	SnippetCount    int
	OriginCount     int
	ApproxSizeBytes int64
}

// ClaimStore supplies claims to the scorer and the citation validator.
// Implementations live in the surrounding application.
type ClaimStore interface {
	// GetClaim returns the claim with the given ID, or nil if unknown.
	GetClaim(ctx context.Context, id ClaimID) (*Claim, error)

	// GetAllClaims returns every claim in the manuscript.
	GetAllClaims(ctx context.Context) ([]Claim, error)
}

// SourceMapper resolves author-year keys to source documents.
type SourceMapper interface {
	// GetSourceMapping returns the mapping for the author-year key,
	// or nil if the key is unmapped.
	GetSourceMapping(ctx context.Context, authorYear string) (*SourceMapping, error)
}
