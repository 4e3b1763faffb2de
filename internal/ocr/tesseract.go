package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract is the production Engine backed by libtesseract
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract engine. Defaults to German plus English
// models, matching the shops this tool targets.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"deu", "eng"}
	}
	return &Tesseract{languages: languages}
}

// Recognize implements Engine. A fresh client per call keeps the cgo
// handle off shared state so concurrent batch items stay independent.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	rec := &Recognition{Text: text}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text without word geometry is still usable
		return rec, nil
	}

	rec.Words = make([]Word, 0, len(boxes))
	for _, b := range boxes {
		rec.Words = append(rec.Words, Word{
			Text:       b.Word,
			Confidence: b.Confidence / 100,
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
		})
	}
	return rec, nil
}
