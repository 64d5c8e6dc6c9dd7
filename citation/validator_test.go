package citation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidgo/evidgo/model"
	"github.com/evidgo/evidgo/testutil"
)

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"as shown by Johnson (2007)", []string{"Johnson2007"}},
		{"earlier work (Johnson, 2007) found the same", []string{"Johnson2007"}},
		{"Smith et al. 2019 replicated this", []string{"Smith2019"}},
		{"Johnson 2007 and later Johnson (2007) again", []string{"Johnson2007"}},
		{"both Johnson (2007) and Zhang (2020) agree", []string{"Johnson2007", "Zhang2020"}},
		{"no citations here", nil},
		{"the year 2007 alone is not a citation", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractCitations(tt.text), "text: %q", tt.text)
	}
}

func TestNormalizeAuthorYear(t *testing.T) {
	for _, raw := range []string{"Johnson2007", "Johnson, 2007", "johnson 2007", "Johnson (2007)"} {
		assert.Equal(t, "Johnson2007", NormalizeAuthorYear(raw), "raw: %q", raw)
	}
	assert.Equal(t, "unparseable", NormalizeAuthorYear("  unparseable "))
}

func fixtureMapper() *testutil.SourceMapper {
	return testutil.NewSourceMapper(
		model.SourceMapping{AuthorYear: "Johnson2007", File: "johnson2007.md", Title: "Batch correction"},
		model.SourceMapping{AuthorYear: "Zhang2020", File: "zhang2020.md", Title: "Replication study"},
	)
}

func TestValidator_OrphanScenario(t *testing.T) {
	ctx := context.Background()

	// The claim cites two mapped sources but only quotes one of them.
	claims := testutil.NewClaimStore(model.Claim{
		ID:           "c1",
		Text:         "correction works (Johnson, 2007) and replicates (Zhang, 2020)",
		Source:       "manuscript",
		PrimaryQuote: &model.Quote{Text: "correction removed the batch effect", AuthorYear: "Johnson2007"},
	})

	v := NewValidator(claims, fixtureMapper())
	results, err := v.ValidateCitations(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Johnson2007", results[0].AuthorYear)
	assert.Equal(t, model.CitationMatched, results[0].Status)
	assert.Equal(t, "Zhang2020", results[1].AuthorYear)
	assert.Equal(t, model.CitationOrphan, results[1].Status)

	orphan, err := v.IsOrphanCitation(ctx, "c1", "Zhang, 2020")
	require.NoError(t, err)
	assert.True(t, orphan)

	orphan, err = v.IsOrphanCitation(ctx, "c1", "Johnson2007")
	require.NoError(t, err)
	assert.False(t, orphan)
}

func TestValidator_QuoteAuthorYearIsNormalized(t *testing.T) {
	ctx := context.Background()

	claims := testutil.NewClaimStore(model.Claim{
		ID:           "c1",
		Text:         "supported by Johnson (2007)",
		Source:       "manuscript",
		PrimaryQuote: &model.Quote{Text: "quoted evidence", AuthorYear: "johnson, 2007"},
	})

	v := NewValidator(claims, fixtureMapper())
	results, err := v.ValidateCitations(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CitationMatched, results[0].Status)
}

func TestValidator_UnmappedSource(t *testing.T) {
	ctx := context.Background()

	claims := testutil.NewClaimStore(model.Claim{
		ID:     "c1",
		Text:   "an uncatalogued result (Nobody, 1999)",
		Source: "manuscript",
	})

	v := NewValidator(claims, fixtureMapper())
	results, err := v.ValidateCitations(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CitationUnmappedSource, results[0].Status)
}

func TestValidator_MissingQuote(t *testing.T) {
	ctx := context.Background()

	// Mapped source, but the claim carries no quote evidence at all.
	claims := testutil.NewClaimStore(model.Claim{
		ID:     "c1",
		Text:   "asserted per Johnson (2007) without evidence",
		Source: "manuscript",
	})

	v := NewValidator(claims, fixtureMapper())
	results, err := v.ValidateCitations(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CitationMissingQuote, results[0].Status)
}

func TestValidator_MissingClaim(t *testing.T) {
	ctx := context.Background()

	v := NewValidator(testutil.NewClaimStore(), fixtureMapper())
	results, err := v.ValidateCitations(ctx, "ghost")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CitationMissingClaim, results[0].Status)
	assert.Equal(t, model.ClaimID("ghost"), results[0].ClaimID)
}

func TestValidator_CacheInvalidation(t *testing.T) {
	ctx := context.Background()

	claims := testutil.NewClaimStore(model.Claim{
		ID:     "c1",
		Text:   "replicates (Zhang, 2020)",
		Source: "manuscript",
		PrimaryQuote: &model.Quote{
			Text:       "unrelated quote",
			AuthorYear: "Johnson2007",
		},
	})

	v := NewValidator(claims, fixtureMapper())
	v.InvalidateOnManuscriptChange("manuscript v1")

	results, err := v.ValidateCitations(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CitationOrphan, results[0].Status)

	// Attach the missing quote. With unchanged content the cached verdict
	// still stands.
	claims.Add(model.Claim{
		ID:           "c1",
		Text:         "replicates (Zhang, 2020)",
		Source:       "manuscript",
		PrimaryQuote: &model.Quote{Text: "replicated finding", AuthorYear: "Zhang2020"},
	})
	v.InvalidateOnManuscriptChange("manuscript v1")

	results, err = v.ValidateCitations(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CitationOrphan, results[0].Status)

	// A content change flushes the cache and the fix becomes visible.
	v.InvalidateOnManuscriptChange("manuscript v2")

	results, err = v.ValidateCitations(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CitationMatched, results[0].Status)
}

func TestValidator_OrphanSweep(t *testing.T) {
	ctx := context.Background()

	claims := testutil.NewClaimStore(
		model.Claim{
			ID:           "c1",
			Text:         "backed claim (Johnson, 2007)",
			Source:       "manuscript",
			PrimaryQuote: &model.Quote{Text: "evidence", AuthorYear: "Johnson2007"},
		},
		model.Claim{
			ID:           "c2",
			Text:         "dangling claim (Zhang, 2020)",
			Source:       "manuscript",
			PrimaryQuote: &model.Quote{Text: "evidence", AuthorYear: "Johnson2007"},
		},
	)

	v := NewValidator(claims, fixtureMapper())
	orphans, err := v.OrphanCitations(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, model.ClaimID("c2"), orphans[0].ClaimID)
	assert.Equal(t, "Zhang2020", orphans[0].AuthorYear)
}
