package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwerk/labelpress/internal/domain"
)

func refDataset() []*domain.Article {
	return []*domain.Article{
		{ArticleNumber: "SW-10234", Name: "Sechskantschraube M8 verzinkt", EAN: "4006381333931", Price: 12.34},
		{ArticleNumber: "SW-10235", Name: "Sechskantschraube M10 verzinkt", EAN: "4006381333948", Price: 14.99},
		{ArticleNumber: "HX-2001", Name: "Hammerstiel Esche 300mm", EAN: "", Price: 4.5},
		{ArticleNumber: "HX-2002", Name: "Hammerstiel Esche 380mm", EAN: "", Price: 5.2},
	}
}

func extracted(articleNumber, ean, name string) *domain.ExtractedData {
	return &domain.ExtractedData{
		ArticleNumber: articleNumber,
		EAN:           ean,
		ProductName:   name,
		Confidence:    domain.Confidence{Overall: 0.9},
	}
}

func TestMatchByArticleNumber(t *testing.T) {
	m := New(Config{})

	tests := []struct {
		name   string
		number string
	}{
		{"Exact", "SW-10234"},
		{"Lowercase", "sw-10234"},
		{"Separator variance", "SW 10234"},
		{"No separator", "SW10234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := m.MatchWithReference(extracted(tt.number, "", ""), refDataset())
			require.NotNil(t, r)
			assert.Equal(t, "SW-10234", r.Article.ArticleNumber)
			assert.Equal(t, domain.MatchedByArticleNumber, r.MatchedBy)
			assert.Equal(t, 1.0, r.MatchScore)
		})
	}
}

func TestMatchByEAN(t *testing.T) {
	m := New(Config{})

	// Wrong article number, but the EAN pins the second article
	r := m.MatchWithReference(extracted("UNKNOWN-1", "4006381333948", ""), refDataset())
	require.NotNil(t, r)
	assert.Equal(t, "SW-10235", r.Article.ArticleNumber)
	assert.Equal(t, domain.MatchedByEAN, r.MatchedBy)

	// Formatted EAN compares digits-only
	r = m.MatchWithReference(extracted("", "4006381-333948", ""), refDataset())
	require.NotNil(t, r)
	assert.Equal(t, "SW-10235", r.Article.ArticleNumber)
}

func TestMatchByFuzzyName(t *testing.T) {
	m := New(Config{})

	r := m.MatchWithReference(extracted("", "", "Hammerstiel Esche 300mm Qualität"), refDataset())
	require.NotNil(t, r)
	assert.Equal(t, "HX-2001", r.Article.ArticleNumber)
	assert.Equal(t, domain.MatchedByFuzzy, r.MatchedBy)
	assert.Less(t, r.MatchScore, 1.0)
	assert.GreaterOrEqual(t, r.MatchScore, DefaultThreshold)
}

func TestMatchBelowThreshold(t *testing.T) {
	m := New(Config{})

	assert.Nil(t, m.MatchWithReference(extracted("", "", "Akkuschrauber 18V Set"), refDataset()))
	assert.Nil(t, m.MatchWithReference(extracted("", "", ""), refDataset()))
	assert.Nil(t, m.MatchWithReference(nil, refDataset()))
}

func TestMatchFirstFoundTieBreak(t *testing.T) {
	m := New(Config{FuzzyThreshold: 0.5})
	ref := []*domain.Article{
		{ArticleNumber: "A-1", Name: "Winkelschleifer 125mm"},
		{ArticleNumber: "A-2", Name: "Winkelschleifer 125mm"},
	}

	r := m.MatchWithReference(extracted("", "", "Winkelschleifer 125mm"), ref)
	require.NotNil(t, r)
	assert.Equal(t, "A-1", r.Article.ArticleNumber)
}

func TestMatchConfidenceScalesWithOCR(t *testing.T) {
	m := New(Config{})

	r := m.MatchWithReference(extracted("SW-10234", "", ""), refDataset())
	require.NotNil(t, r)
	assert.InDelta(t, 0.9, r.Confidence, 0.001)
}

func TestBatchMatch(t *testing.T) {
	m := New(Config{})

	data := []*domain.ExtractedData{
		extracted("SW-10234", "", ""),
		extracted("", "", "nothing matches this"),
		extracted("HX-2002", "", ""),
	}

	results := m.BatchMatch(data, refDataset())
	require.Len(t, results, 2)
	assert.Equal(t, "SW-10234", results[0].Article.ArticleNumber)
	assert.Equal(t, "HX-2002", results[1].Article.ArticleNumber)
}

func TestFindBestMatches(t *testing.T) {
	m := New(Config{FuzzyThreshold: 0.5})

	results := m.FindBestMatches(extracted("", "", "Sechskantschraube M8 verzinkt"), refDataset(), 3)
	require.NotEmpty(t, results)

	// Sorted descending, exact name first
	assert.Equal(t, "SW-10234", results[0].Article.ArticleNumber)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].MatchScore, results[i-1].MatchScore)
	}
}

func TestFindBestMatchesHonorsTopN(t *testing.T) {
	m := New(Config{FuzzyThreshold: 0.1})

	results := m.FindBestMatches(extracted("", "", "Sechskantschraube verzinkt"), refDataset(), 1)
	assert.Len(t, results, 1)

	assert.Nil(t, m.FindBestMatches(extracted("SW-10234", "", ""), refDataset(), 0))
}

func TestTokenSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"Identical", "Hammerstiel Esche 300mm", "Hammerstiel Esche 300mm", 1},
		{"Case insensitive", "HAMMERSTIEL ESCHE", "hammerstiel esche", 1},
		{"Disjoint", "Bohrmaschine", "Gartenschlauch", 0},
		{"Empty", "", "Hammer", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TokenSimilarity(tt.a, tt.b), 0.001)
		})
	}

	// Partial overlap lands strictly between
	s := TokenSimilarity("Hammerstiel Esche 300mm", "Hammerstiel Esche 380mm")
	assert.Greater(t, s, 0.5)
	assert.Less(t, s, 1.0)
}
