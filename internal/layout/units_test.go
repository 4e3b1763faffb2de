package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMMToPixels(t *testing.T) {
	tests := []struct {
		name     string
		mm       float64
		dpi      int
		expected int
	}{
		{"One inch at 300", 25.4, 300, 300},
		{"50mm at 300", 50, 300, 591},
		{"A4 width at 300", 210, 300, 2480},
		{"Zero", 0, 300, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MMToPixels(tt.mm, tt.dpi))
		})
	}
}

func TestPixelRoundTrip(t *testing.T) {
	// Rounding drift over a round trip stays under a tenth of a millimetre
	px := MMToPixels(50, 300)
	assert.InDelta(t, 50, PixelsToMM(px, 300), 0.1)
}

func TestMMToPoints(t *testing.T) {
	assert.InDelta(t, 595.28, MMToPoints(210), 0.01)
	assert.InDelta(t, 841.89, MMToPoints(297), 0.01)
}
