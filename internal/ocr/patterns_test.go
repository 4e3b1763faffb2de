package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwerk/labelpress/internal/domain"
)

func TestMatchArticleNumber(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		found    bool
	}{
		{
			name:     "Labelled Art.-Nr.",
			text:     "Art.-Nr.: SW-10234",
			expected: "SW-10234",
			found:    true,
		},
		{
			name:     "Labelled Artikelnummer",
			text:     "Artikelnummer 4711-B",
			expected: "4711-B",
			found:    true,
		},
		{
			name:     "Bestellnummer",
			text:     "Bestell-Nr: AB123",
			expected: "AB123",
			found:    true,
		},
		{
			name:     "First pattern wins over bare code",
			text:     "Art.Nr: XX-111 sonst YY-222",
			expected: "XX-111",
			found:    true,
		},
		{
			name:  "No article number",
			text:  "Nur eine Beschreibung ohne Nummer",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, ok := MatchField(articleNumberPatterns, tt.text)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.expected, v)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
	}{
		{"German comma", "12,34", 12.34},
		{"German thousands", "1.234,56", 1234.56},
		{"Decimal point", "9.99", 9.99},
		{"Euro suffix trimmed", "5,00 €", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 0.001)
		})
	}
}

func TestMatchPriceChain(t *testing.T) {
	v, pattern, ok := MatchField(pricePatterns, "Preis: 1.299,00 € inkl. MwSt.")
	require.True(t, ok)
	assert.Equal(t, "1.299,00", v)
	assert.Equal(t, "euro-suffix", pattern)

	v, _, ok = MatchField(pricePatterns, "€ 49,90")
	require.True(t, ok)
	assert.Equal(t, "49,90", v)
}

func TestMatchTieredPrices(t *testing.T) {
	text := "Staffelpreise:\nab 10 Stück: 9,50 €\nab 50 Stück: 8,75 €\nab 100 Stück: 7,99 €"

	tiers := MatchTieredPrices(text)
	require.Len(t, tiers, 3)
	assert.Equal(t, domain.TieredPrice{Quantity: 10, Price: 9.5}, tiers[0])
	assert.Equal(t, domain.TieredPrice{Quantity: 50, Price: 8.75}, tiers[1])
	assert.Equal(t, domain.TieredPrice{Quantity: 100, Price: 7.99}, tiers[2])
}

func TestMatchTieredPricesEmpty(t *testing.T) {
	assert.Nil(t, MatchTieredPrices("Einzelpreis 12,00 €"))
}

func TestMatchEAN(t *testing.T) {
	v, _, ok := MatchField(eanPatterns, "EAN: 4006381333931")
	require.True(t, ok)
	assert.Equal(t, "4006381333931", v)

	v, _, ok = MatchField(eanPatterns, "Im Text steht 4006381333931 ohne Label")
	require.True(t, ok)
	assert.Equal(t, "4006381333931", v)
}

func TestParseFields(t *testing.T) {
	text := "Sechskantschraube M8 verzinkt\nArt.-Nr.: SW-10234\nEAN: 4006381333931\nPreis: 12,34 €\nab 10 Stück: 9,50 €"

	data, matched := ParseFields(text)

	assert.Equal(t, "SW-10234", data.ArticleNumber)
	assert.Equal(t, "4006381333931", data.EAN)
	require.NotNil(t, data.Price)
	assert.InDelta(t, 12.34, *data.Price, 0.001)
	assert.Len(t, data.TieredPrices, 1)
	assert.Equal(t, "Sechskantschraube M8 verzinkt", data.ProductName)
	assert.Contains(t, matched, FieldArticleNumber)
	assert.Contains(t, matched, FieldPrice)
}

func TestGuessProductNameSkipsFieldLines(t *testing.T) {
	text := "Art.-Nr.: 123\nEAN: 4006381333931\nHammerstiel Esche 300mm"
	assert.Equal(t, "Hammerstiel Esche 300mm", guessProductName(text))
}
