// Package excel loads reference article datasets from spreadsheet files.
package excel

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/printwerk/labelpress/internal/domain"
)

// Column header candidates, ordered by how often German shop exports use
// them. The first present header wins per field.
var (
	articleNumberColumns = []string{"Artikel", "Artikelnummer", "Art.-Nr.", "Art.Nr.", "Artikel-Nr.", "ArtikelNr", "SKU"}
	nameColumns          = []string{"Bezeichnung", "Beschreibung", "Name", "Artikelbezeichnung"}
	priceColumns         = []string{"Preis", "Einzelpreis", "VK", "VK-Preis", "Verkaufspreis"}
	eanColumns           = []string{"EAN", "GTIN", "Barcode"}
)

// LoadReference reads the first sheet of an xlsx workbook into articles.
// The header row is matched case-insensitively against the known German
// column names. Rows without an article number are skipped.
func LoadReference(path string) ([]*domain.Article, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open reference %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("reference %s: %w: no sheets", path, domain.ErrValidation)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("reference %s: %w: no data rows", path, domain.ErrValidation)
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", path, err)
	}

	now := time.Now()
	var articles []*domain.Article
	for _, row := range rows[1:] {
		number := strings.TrimSpace(cell(row, cols.articleNumber))
		if number == "" {
			continue
		}

		art := &domain.Article{
			ArticleNumber: number,
			Name:          strings.TrimSpace(cell(row, cols.name)),
			EAN:           strings.TrimSpace(cell(row, cols.ean)),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if raw := strings.TrimSpace(cell(row, cols.price)); raw != "" {
			if price, err := parseCellPrice(raw); err == nil {
				art.Price = price
			}
		}
		articles = append(articles, art)
	}

	if len(articles) == 0 {
		return nil, fmt.Errorf("reference %s: %w: no usable rows", path, domain.ErrValidation)
	}
	return articles, nil
}

type columnIndex struct {
	articleNumber int
	name          int
	price         int
	ean           int
}

func mapColumns(header []string) (columnIndex, error) {
	cols := columnIndex{
		articleNumber: findColumn(header, articleNumberColumns),
		name:          findColumn(header, nameColumns),
		price:         findColumn(header, priceColumns),
		ean:           findColumn(header, eanColumns),
	}
	if cols.articleNumber < 0 {
		return cols, fmt.Errorf("%w: no article number column in header %v", domain.ErrValidation, header)
	}
	return cols, nil
}

func findColumn(header []string, candidates []string) int {
	for _, want := range candidates {
		for i, got := range header {
			if strings.EqualFold(strings.TrimSpace(got), want) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseCellPrice accepts both German (1.234,56) and point-decimal cells
func parseCellPrice(raw string) (float64, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "€"))
	s = strings.TrimSpace(strings.TrimPrefix(s, "€"))

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
