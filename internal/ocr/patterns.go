package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/printwerk/labelpress/internal/domain"
)

// FieldPattern is one probe in an ordered, field-typed pattern list. For
// each field the first pattern that matches wins.
type FieldPattern struct {
	Name string
	re   *regexp.Regexp
}

var articleNumberPatterns = []FieldPattern{
	{"labelled-art-nr", regexp.MustCompile(`(?i)Art(?:ikel)?\.?\s*-?\s*N(?:r|o)\.?\s*:?\s*([A-Z0-9][A-Z0-9\-./]{2,19})`)},
	{"labelled-artikelnummer", regexp.MustCompile(`(?i)Artikelnummer\s*:?\s*([A-Z0-9][A-Z0-9\-./]{2,19})`)},
	{"labelled-bestellnummer", regexp.MustCompile(`(?i)Bestell\s*-?\s*Nr\.?\s*:?\s*([A-Z0-9][A-Z0-9\-./]{2,19})`)},
	{"labelled-sku", regexp.MustCompile(`(?i)SKU\s*:?\s*([A-Z0-9][A-Z0-9\-./]{2,19})`)},
	{"bare-code", regexp.MustCompile(`\b([A-Z]{2,4}-\d{3,8})\b`)},
}

var pricePatterns = []FieldPattern{
	{"euro-suffix", regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*,\d{2})\s*€`)},
	{"euro-prefix", regexp.MustCompile(`€\s*(\d{1,3}(?:\.\d{3})*,\d{2})`)},
	{"eur-label", regexp.MustCompile(`(?i)EUR\s*(\d{1,3}(?:\.\d{3})*,\d{2})`)},
	{"decimal-point", regexp.MustCompile(`(\d+\.\d{2})\s*(?:€|EUR)`)},
}

var eanPatterns = []FieldPattern{
	{"labelled-ean", regexp.MustCompile(`(?i)(?:EAN|GTIN)\s*:?\s*(\d{8,14})`)},
	{"bare-ean13", regexp.MustCompile(`\b(\d{13})\b`)},
	{"bare-ean8", regexp.MustCompile(`\b(\d{8})\b`)},
}

// Tiered-price patterns match repeatedly; the first pattern with at least
// one hit contributes all of its hits.
var tieredPricePatterns = []FieldPattern{
	{"ab-stueck", regexp.MustCompile(`(?i)ab\s+(\d+)\s*(?:Stück|Stck\.?|Stk\.?|St\.?)?\s*:?\s*(\d{1,3}(?:\.\d{3})*,\d{2})\s*€`)},
	{"stueck-dash", regexp.MustCompile(`(?i)(\d+)\s*(?:Stück|Stck\.?|Stk\.?)\s*[:\-–]?\s*(\d{1,3}(?:\.\d{3})*,\d{2})\s*€`)},
}

// MatchField evaluates an ordered pattern list; the first match wins
func MatchField(patterns []FieldPattern, text string) (value, pattern string, ok bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if len(m) > 1 && m[1] != "" {
			return strings.TrimSpace(m[1]), p.Name, true
		}
	}
	return "", "", false
}

// MatchTieredPrices collects all {quantity, price} breakpoints
func MatchTieredPrices(text string) []domain.TieredPrice {
	for _, p := range tieredPricePatterns {
		matches := p.re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		tiers := make([]domain.TieredPrice, 0, len(matches))
		for _, m := range matches {
			qty, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			price, err := ParsePrice(m[2])
			if err != nil {
				continue
			}
			tiers = append(tiers, domain.TieredPrice{Quantity: qty, Price: price})
		}
		if len(tiers) > 0 {
			return tiers
		}
	}
	return nil
}

// ParsePrice parses German-formatted price strings ("1.234,56") as well as
// plain decimal-point values.
func ParsePrice(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSpace(s)

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

// matchedFields maps a field name to its matched raw value
type matchedFields map[string]string

// Recognized field names
const (
	FieldArticleNumber = "articleNumber"
	FieldPrice         = "price"
	FieldProductName   = "productName"
	FieldEAN           = "ean"
	FieldTieredPrices  = "tieredPrices"
)

// ParseFields runs every field's pattern list over recognized text and
// fills the structured part of an ExtractedData.
func ParseFields(text string) (*domain.ExtractedData, matchedFields) {
	data := &domain.ExtractedData{RawText: text}
	matched := matchedFields{}

	if v, _, ok := MatchField(articleNumberPatterns, text); ok {
		data.ArticleNumber = v
		matched[FieldArticleNumber] = v
	}

	if v, _, ok := MatchField(pricePatterns, text); ok {
		if price, err := ParsePrice(v); err == nil {
			data.Price = &price
			matched[FieldPrice] = v
		}
	}

	if tiers := MatchTieredPrices(text); len(tiers) > 0 {
		data.TieredPrices = tiers
		matched[FieldTieredPrices] = text
	}

	if v, _, ok := MatchField(eanPatterns, text); ok {
		data.EAN = v
		matched[FieldEAN] = v
	}

	if name := guessProductName(text); name != "" {
		data.ProductName = name
		matched[FieldProductName] = name
	}

	return data, matched
}

var fieldLabelLine = regexp.MustCompile(`(?i)^\s*(Art|Artikel|Bestell|SKU|EAN|GTIN|Preis|Price|ab\s+\d)`)

// guessProductName picks the first plausible title line: long enough to be
// a name, not a labelled field line, not mostly digits.
func guessProductName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 4 || len(line) > 120 {
			continue
		}
		if fieldLabelLine.MatchString(line) {
			continue
		}
		digits := 0
		for _, r := range line {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits*2 > len(line) {
			continue
		}
		return line
	}
	return ""
}
