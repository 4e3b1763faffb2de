package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PreprocessOptions controls the image pipeline run before recognition
type PreprocessOptions struct {
	Grayscale         bool
	NormalizeContrast bool
	Threshold         uint8 // 0 disables binarization
	Deskew            bool
	MinWidth          int // upscale below this width, 0 disables
}

// DefaultPreprocessOptions returns the pipeline used for whole-page shots
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		Grayscale:         true,
		NormalizeContrast: true,
		Threshold:         160,
		MinWidth:          1000,
	}
}

// Preprocess applies grayscale, contrast normalization, thresholding,
// optional deskew and upscaling, in that order.
func Preprocess(img image.Image, opts PreprocessOptions) image.Image {
	out := imaging.Clone(img)

	if opts.Grayscale {
		out = imaging.Grayscale(out)
	}

	if opts.NormalizeContrast {
		out = stretchContrast(out)
	}

	if opts.Deskew {
		if angle := estimateSkew(out); angle != 0 {
			out = imaging.Rotate(out, angle, color.White)
		}
	}

	if opts.Threshold > 0 {
		t := opts.Threshold
		out = imaging.AdjustFunc(out, func(c color.NRGBA) color.NRGBA {
			if c.R >= t {
				return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			return color.NRGBA{A: 255}
		})
	}

	if opts.MinWidth > 0 && out.Bounds().Dx() < opts.MinWidth {
		out = imaging.Resize(out, opts.MinWidth, 0, imaging.Lanczos)
	}

	return out
}

// stretchContrast linearly maps the observed luminance range onto 0-255
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	minL, maxL := uint8(255), uint8(0)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := img.NRGBAAt(x, y).R
			if l < minL {
				minL = l
			}
			if l > maxL {
				maxL = l
			}
		}
	}

	if maxL <= minL {
		return img
	}

	span := float64(maxL - minL)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		stretch := func(v uint8) uint8 {
			f := (float64(v) - float64(minL)) / span * 255
			if f < 0 {
				f = 0
			}
			if f > 255 {
				f = 255
			}
			return uint8(f)
		}
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

// estimateSkew searches small rotations for the angle that maximizes the
// variance of horizontal ink profiles; text lines align at that angle.
// Returns 0 when the image is already straight enough.
func estimateSkew(img *image.NRGBA) float64 {
	// Work on a narrow copy to keep the search cheap
	probe := imaging.Resize(img, 400, 0, imaging.NearestNeighbor)

	bestAngle, bestScore := 0.0, rowVariance(probe)
	for angle := -5.0; angle <= 5.0; angle += 0.5 {
		if angle == 0 {
			continue
		}
		rotated := imaging.Rotate(probe, angle, color.White)
		if score := rowVariance(rotated); score > bestScore {
			bestScore, bestAngle = score, angle
		}
	}

	if bestAngle >= -0.5 && bestAngle <= 0.5 {
		return 0
	}
	return bestAngle
}

func rowVariance(img *image.NRGBA) float64 {
	bounds := img.Bounds()
	rows := make([]float64, 0, bounds.Dy())

	var total float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		var ink float64
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.NRGBAAt(x, y).R < 128 {
				ink++
			}
		}
		rows = append(rows, ink)
		total += ink
	}

	if len(rows) == 0 {
		return 0
	}

	mean := total / float64(len(rows))
	var variance float64
	for _, ink := range rows {
		d := ink - mean
		variance += d * d
	}
	return variance / float64(len(rows))
}
