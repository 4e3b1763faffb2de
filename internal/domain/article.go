package domain

import "time"

// Article is a reference product record, keyed by article number
type Article struct {
	ArticleNumber string        `json:"article_number"`
	Name          string        `json:"name,omitempty"`
	EAN           string        `json:"ean,omitempty"`
	Price         float64       `json:"price,omitempty"`
	TieredPrices  []TieredPrice `json:"tiered_prices,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// UpsertCounts reports the outcome of a bulk article upsert
type UpsertCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// FromExtracted builds an Article from a usable extraction result
func FromExtracted(d *ExtractedData) *Article {
	now := time.Now().UTC()
	a := &Article{
		ArticleNumber: d.ArticleNumber,
		Name:          d.ProductName,
		EAN:           d.EAN,
		TieredPrices:  d.TieredPrices,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if d.Price != nil {
		a.Price = *d.Price
	}
	return a
}
