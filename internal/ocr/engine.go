package ocr

import "context"

// Word is one recognized token with its confidence (0-1) and position
type Word struct {
	Text       string
	Confidence float64
	X, Y       int
	Width      int
	Height     int
}

// Recognition is the raw output of one engine run
type Recognition struct {
	Text  string
	Words []Word
}

// Engine runs text recognition over a PNG-encoded image
type Engine interface {
	Recognize(ctx context.Context, png []byte) (*Recognition, error)
}
