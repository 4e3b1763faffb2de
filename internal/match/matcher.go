// Package match correlates extracted product data against the reference
// article dataset.
package match

import (
	"regexp"
	"sort"
	"strings"

	"github.com/printwerk/labelpress/internal/domain"
)

// DefaultThreshold is the minimum fuzzy name similarity for a match
const DefaultThreshold = 0.75

// Config configures a Matcher
type Config struct {
	// FuzzyThreshold is the minimum token-set similarity (0-1) for a
	// product-name match. Exact key matches ignore it.
	FuzzyThreshold float64
}

// Matcher runs the exact-then-fuzzy comparator chain
type Matcher struct {
	cfg Config
}

// New creates a Matcher
func New(cfg Config) *Matcher {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultThreshold
	}
	return &Matcher{cfg: cfg}
}

// MatchWithReference finds the best reference article for one extraction:
// exact article number, then exact EAN, then fuzzy name similarity against
// the threshold. Ties break by first-found, so results are deterministic
// for a given dataset ordering. Returns nil when nothing matches.
func (m *Matcher) MatchWithReference(data *domain.ExtractedData, reference []*domain.Article) *domain.MatchResult {
	if data == nil {
		return nil
	}

	if key := normalizeKey(data.ArticleNumber); key != "" {
		for _, art := range reference {
			if normalizeKey(art.ArticleNumber) == key {
				return result(data, art, 1, domain.MatchedByArticleNumber)
			}
		}
	}

	if ean := digitsOnly(data.EAN); ean != "" {
		for _, art := range reference {
			if digitsOnly(art.EAN) == ean {
				return result(data, art, 1, domain.MatchedByEAN)
			}
		}
	}

	if data.ProductName != "" {
		var best *domain.Article
		var bestScore float64
		for _, art := range reference {
			score := TokenSimilarity(data.ProductName, art.Name)
			if score > bestScore {
				bestScore, best = score, art
			}
		}
		if best != nil && bestScore >= m.cfg.FuzzyThreshold {
			return result(data, best, bestScore, domain.MatchedByFuzzy)
		}
	}

	return nil
}

// BatchMatch runs the comparator over a whole extraction set
func (m *Matcher) BatchMatch(data []*domain.ExtractedData, reference []*domain.Article) []*domain.MatchResult {
	var results []*domain.MatchResult
	for _, d := range data {
		if r := m.MatchWithReference(d, reference); r != nil {
			results = append(results, r)
		}
	}
	return results
}

// FindBestMatches returns the topN highest-scoring candidates for one
// extraction, sorted descending by score. Useful for review UIs where an
// operator picks among near matches.
func (m *Matcher) FindBestMatches(data *domain.ExtractedData, reference []*domain.Article, topN int) []*domain.MatchResult {
	if data == nil || topN <= 0 {
		return nil
	}

	key := normalizeKey(data.ArticleNumber)
	ean := digitsOnly(data.EAN)

	var candidates []*domain.MatchResult
	for _, art := range reference {
		switch {
		case key != "" && normalizeKey(art.ArticleNumber) == key:
			candidates = append(candidates, result(data, art, 1, domain.MatchedByArticleNumber))
		case ean != "" && digitsOnly(art.EAN) == ean:
			candidates = append(candidates, result(data, art, 1, domain.MatchedByEAN))
		default:
			if score := TokenSimilarity(data.ProductName, art.Name); score >= m.cfg.FuzzyThreshold {
				candidates = append(candidates, result(data, art, score, domain.MatchedByFuzzy))
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchScore > candidates[j].MatchScore
	})

	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

func result(data *domain.ExtractedData, art *domain.Article, score float64, by domain.MatchedBy) *domain.MatchResult {
	return &domain.MatchResult{
		OCRData:    data,
		Article:    art,
		MatchScore: score,
		MatchedBy:  by,
		Confidence: score * safeOverall(data),
	}
}

func safeOverall(data *domain.ExtractedData) float64 {
	if data.Confidence.Overall > 0 {
		return data.Confidence.Overall
	}
	return 1
}

var keyStrip = regexp.MustCompile(`[^A-Z0-9]`)

// normalizeKey uppercases and strips separators so "sw-10234" and
// "SW 10234" compare equal.
func normalizeKey(s string) string {
	return keyStrip.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "")
}

var nonDigits = regexp.MustCompile(`\D`)

func digitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// TokenSimilarity computes the Sørensen-Dice coefficient over lowercase
// name tokens: 2·|A∩B| / (|A|+|B|).
func TokenSimilarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	common := 0
	for tok := range ta {
		if tb[tok] {
			common++
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb))
}

var tokenSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range tokenSplit.Split(strings.ToLower(s), -1) {
		if len(tok) >= 2 {
			tokens[tok] = true
		}
	}
	return tokens
}
