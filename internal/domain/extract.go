package domain

// TieredPrice is a {quantity, price} breakpoint from a volume-pricing table
type TieredPrice struct {
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// BoundingBox is a recognized text region
type BoundingBox struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-1
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Confidence carries per-field and overall recognition confidence (0-1)
type Confidence struct {
	Overall float64            `json:"overall"`
	Fields  map[string]float64 `json:"fields,omitempty"`
}

// ExtractedData holds the structured fields recognized from one screenshot
type ExtractedData struct {
	SourcePath    string        `json:"source_path"`
	ProductKey    string        `json:"product_key,omitempty"`
	ArticleNumber string        `json:"article_number,omitempty"`
	ProductName   string        `json:"product_name,omitempty"`
	EAN           string        `json:"ean,omitempty"`
	Price         *float64      `json:"price,omitempty"`
	TieredPrices  []TieredPrice `json:"tiered_prices,omitempty"`
	Confidence    Confidence    `json:"confidence"`
	RawText       string        `json:"raw_text,omitempty"`
	BoundingBoxes []BoundingBox `json:"bounding_boxes,omitempty"`

	// Error is set when preprocessing or recognition failed for this item.
	Error string `json:"error,omitempty"`
}

// Usable reports whether the extraction produced a persistable record
func (d *ExtractedData) Usable() bool {
	return d != nil && d.Error == "" && d.ArticleNumber != ""
}
