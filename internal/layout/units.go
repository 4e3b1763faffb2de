// Package layout arranges label images on print sheets and renders them
// to PNG, JPEG and PDF.
package layout

// Unit conversion constants for print geometry
const (
	mmPerInch   = 25.4
	pointsPerMM = 2.83465
)

// MMToPixels converts millimetres to device pixels at the given DPI
func MMToPixels(mm float64, dpi int) int {
	return int(mm*float64(dpi)/mmPerInch + 0.5)
}

// PixelsToMM converts device pixels back to millimetres at the given DPI
func PixelsToMM(px int, dpi int) float64 {
	return float64(px) * mmPerInch / float64(dpi)
}

// MMToPoints converts millimetres to PDF points (1/72 inch)
func MMToPoints(mm float64) float64 {
	return mm * pointsPerMM
}
