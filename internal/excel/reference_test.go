package excel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/printwerk/labelpress/internal/domain"
)

func writeWorkbook(t *testing.T, header []string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	path := filepath.Join(t.TempDir(), "reference.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoadReference(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"Artikelnummer", "Bezeichnung", "Preis", "EAN"},
		[][]any{
			{"SW-10234", "Sechskantschraube M8", "12,34", "4006381333931"},
			{"HX-2001", "Hammerstiel Esche", 4.5, ""},
			{"", "Zeile ohne Nummer wird übersprungen", "1,00", ""},
		},
	)

	articles, err := LoadReference(path)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "SW-10234", articles[0].ArticleNumber)
	assert.Equal(t, "Sechskantschraube M8", articles[0].Name)
	assert.InDelta(t, 12.34, articles[0].Price, 0.001)
	assert.Equal(t, "4006381333931", articles[0].EAN)

	assert.Equal(t, "HX-2001", articles[1].ArticleNumber)
	assert.InDelta(t, 4.5, articles[1].Price, 0.001)
}

func TestLoadReferenceColumnVariants(t *testing.T) {
	tests := []struct {
		name   string
		header []string
	}{
		{"Art.-Nr. with VK", []string{"Art.-Nr.", "Name", "VK"}},
		{"Plain Artikel", []string{"Artikel", "Beschreibung", "Einzelpreis"}},
		{"Case insensitive", []string{"ARTIKELNUMMER", "NAME", "PREIS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWorkbook(t, tt.header, [][]any{{"A-1", "Testartikel", "9,99"}})

			articles, err := LoadReference(path)
			require.NoError(t, err)
			require.Len(t, articles, 1)
			assert.Equal(t, "A-1", articles[0].ArticleNumber)
			assert.InDelta(t, 9.99, articles[0].Price, 0.001)
		})
	}
}

func TestLoadReferencePreferredColumnOrder(t *testing.T) {
	// Both "Artikel" and "Artikelnummer" present: the earlier candidate wins
	path := writeWorkbook(t,
		[]string{"Artikelnummer", "Artikel", "Preis"},
		[][]any{{"NUMMER-1", "ARTIKEL-1", "1,00"}},
	)

	articles, err := LoadReference(path)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "ARTIKEL-1", articles[0].ArticleNumber)
}

func TestLoadReferenceMissingArticleColumn(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"Bezeichnung", "Preis"},
		[][]any{{"Hammer", "5,00"}},
	)

	_, err := LoadReference(path)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoadReferenceEmptySheet(t *testing.T) {
	path := writeWorkbook(t, []string{"Artikelnummer"}, nil)

	_, err := LoadReference(path)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoadReferenceMissingFile(t *testing.T) {
	_, err := LoadReference(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestParseCellPrice(t *testing.T) {
	tests := []struct {
		raw      string
		expected float64
	}{
		{"12,34", 12.34},
		{"1.234,56", 1234.56},
		{"9.99", 9.99},
		{"5,00 €", 5},
	}

	for _, tt := range tests {
		got, err := parseCellPrice(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.InDelta(t, tt.expected, got, 0.001, tt.raw)
	}
}
