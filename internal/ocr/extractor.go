// Package ocr turns captured screenshots into structured product fields.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/storage"
)

const (
	// DefaultFieldConfidence is assumed when the engine provides no word
	// confidences for a matched field.
	DefaultFieldConfidence = 0.7

	// CropFieldConfidence applies on the specialized crop path, which
	// recognizes pre-isolated per-field images.
	CropFieldConfidence = 0.9
)

// Config configures an Extractor
type Config struct {
	Preprocess PreprocessOptions
}

// Extractor runs recognition and field parsing over stored screenshots
type Extractor struct {
	engine Engine
	store  storage.BlobStore
	cfg    Config
}

// NewExtractor creates an Extractor
func NewExtractor(engine Engine, store storage.BlobStore, cfg Config) *Extractor {
	if cfg.Preprocess == (PreprocessOptions{}) {
		cfg.Preprocess = DefaultPreprocessOptions()
	}
	return &Extractor{engine: engine, store: store, cfg: cfg}
}

// ProcessScreenshot recognizes a whole-page screenshot and parses its
// structured fields.
func (e *Extractor) ProcessScreenshot(ctx context.Context, imagePath string) (*domain.ExtractedData, error) {
	rec, err := e.recognize(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(rec.Text) == "" {
		return nil, fmt.Errorf("%w: no text recognized in %s", domain.ErrExtraction, imagePath)
	}

	data, matched := ParseFields(rec.Text)
	data.SourcePath = imagePath
	data.BoundingBoxes = toBoundingBoxes(rec.Words)
	data.Confidence = confidenceFor(matched, rec.Words)

	return data, nil
}

// Crop file names produced by the crawler, keyed to their parse target
var cropFiles = map[string]string{
	domain.CropArticleNumber + ".png": FieldArticleNumber,
	domain.CropPrice + ".png":         FieldPrice,
	domain.CropDescription + ".png":   FieldProductName,
}

// ProcessArticleElements is the specialized path over pre-cropped per-field
// images in a product folder. Isolated crops recognize far cleaner than a
// full page, so per-field confidence is fixed at CropFieldConfidence.
func (e *Extractor) ProcessArticleElements(ctx context.Context, dir, articleNumber string) (*domain.ExtractedData, error) {
	keys, err := e.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	data := &domain.ExtractedData{ArticleNumber: articleNumber}
	fields := map[string]float64{}
	var rawParts []string

	for _, key := range keys {
		field, ok := cropFiles[path.Base(key)]
		if !ok {
			continue
		}

		rec, err := e.recognize(ctx, key)
		if err != nil || strings.TrimSpace(rec.Text) == "" {
			continue
		}
		text := strings.TrimSpace(rec.Text)
		rawParts = append(rawParts, text)

		switch field {
		case FieldArticleNumber:
			if v, _, ok := MatchField(articleNumberPatterns, text); ok {
				data.ArticleNumber = v
			} else if data.ArticleNumber == "" {
				data.ArticleNumber = firstToken(text)
			}
			fields[FieldArticleNumber] = CropFieldConfidence
		case FieldPrice:
			if v, _, ok := MatchField(pricePatterns, text); ok {
				if price, err := ParsePrice(v); err == nil {
					data.Price = &price
					fields[FieldPrice] = CropFieldConfidence
				}
			}
			if tiers := MatchTieredPrices(text); len(tiers) > 0 {
				data.TieredPrices = tiers
				fields[FieldTieredPrices] = CropFieldConfidence
			}
		case FieldProductName:
			if name := guessProductName(text); name != "" {
				data.ProductName = name
				fields[FieldProductName] = CropFieldConfidence
			}
		}

		if v, _, ok := MatchField(eanPatterns, text); ok && data.EAN == "" {
			data.EAN = v
			fields[FieldEAN] = CropFieldConfidence
		}
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no usable crops under %s", domain.ErrExtraction, dir)
	}

	if data.ArticleNumber != "" && fields[FieldArticleNumber] == 0 {
		fields[FieldArticleNumber] = CropFieldConfidence
	}

	data.SourcePath = dir
	data.RawText = strings.Join(rawParts, "\n")
	data.Confidence = domain.Confidence{Overall: mean(fields), Fields: fields}

	return data, nil
}

// recognize loads, preprocesses and recognizes one stored image
func (e *Extractor) recognize(ctx context.Context, key string) (*Recognition, error) {
	raw, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrExtraction, key, err)
	}

	processed := Preprocess(img, e.cfg.Preprocess)

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", domain.ErrExtraction, key, err)
	}

	rec, err := e.engine.Recognize(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtraction, key, err)
	}
	return rec, nil
}

// confidenceFor derives per-field confidences from the words composing
// each matched value, falling back to DefaultFieldConfidence when the
// engine provided none.
func confidenceFor(matched matchedFields, words []Word) domain.Confidence {
	fields := make(map[string]float64, len(matched))

	for field, value := range matched {
		var sum float64
		var n int
		for _, w := range words {
			if w.Text == "" || w.Confidence == 0 {
				continue
			}
			if strings.Contains(value, w.Text) {
				sum += w.Confidence
				n++
			}
		}
		if n > 0 {
			fields[field] = sum / float64(n)
		} else {
			fields[field] = DefaultFieldConfidence
		}
	}

	return domain.Confidence{Overall: mean(fields), Fields: fields}
}

func mean(fields map[string]float64) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum float64
	for _, v := range fields {
		sum += v
	}
	return sum / float64(len(fields))
}

func toBoundingBoxes(words []Word) []domain.BoundingBox {
	if len(words) == 0 {
		return nil
	}
	boxes := make([]domain.BoundingBox, 0, len(words))
	for _, w := range words {
		boxes = append(boxes, domain.BoundingBox{
			Text:       w.Text,
			Confidence: w.Confidence,
			X:          w.X,
			Y:          w.Y,
			Width:      w.Width,
			Height:     w.Height,
		})
	}
	return boxes
}

func firstToken(text string) string {
	for _, f := range strings.Fields(text) {
		if len(f) >= 3 {
			return f
		}
	}
	return ""
}
