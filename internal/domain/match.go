package domain

// MatchedBy identifies which comparator produced a match
type MatchedBy string

const (
	MatchedByArticleNumber MatchedBy = "articleNumber"
	MatchedByEAN           MatchedBy = "ean"
	MatchedByProductName   MatchedBy = "productName"
	MatchedByFuzzy         MatchedBy = "fuzzy"
)

// MatchResult correlates extracted data with a reference article.
// Computed on demand, never persisted on its own.
type MatchResult struct {
	OCRData    *ExtractedData `json:"ocr_data"`
	Article    *Article       `json:"article"`
	MatchScore float64        `json:"match_score"`
	MatchedBy  MatchedBy      `json:"matched_by"`
	Confidence float64        `json:"confidence"`
}
