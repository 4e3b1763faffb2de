package domain

import "github.com/google/uuid"

// PaperFormat describes the output sheet in millimeters
type PaperFormat struct {
	Type        string  `json:"type"` // a4, a3, letter
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Orientation string  `json:"orientation"` // portrait, landscape
}

// Standard paper sizes in portrait orientation (mm)
var paperSizes = map[string][2]float64{
	"a4":     {210, 297},
	"a3":     {297, 420},
	"letter": {215.9, 279.4},
}

// NewPaperFormat returns the named paper format, honoring orientation.
// Unknown types fall back to A4.
func NewPaperFormat(paperType, orientation string) PaperFormat {
	size, ok := paperSizes[paperType]
	if !ok {
		paperType = "a4"
		size = paperSizes["a4"]
	}
	w, h := size[0], size[1]
	if orientation == "landscape" {
		w, h = h, w
	} else {
		orientation = "portrait"
	}
	return PaperFormat{Type: paperType, Width: w, Height: h, Orientation: orientation}
}

// Margins are the non-printable sheet borders in millimeters
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// UniformMargins returns equal margins on all sides
func UniformMargins(mm float64) Margins {
	return Margins{Top: mm, Right: mm, Bottom: mm, Left: mm}
}

// GridLayout describes the label grid on a sheet
type GridLayout struct {
	Columns       int     `json:"columns"`
	Rows          int     `json:"rows"`
	Spacing       float64 `json:"spacing"` // inter-cell gap, mm
	Margins       Margins `json:"margins"`
	AutoCalculate bool    `json:"auto_calculate"`
}

// RenderSettings controls rasterization and composition
type RenderSettings struct {
	DPI          int     `json:"dpi"`
	Bleed        float64 `json:"bleed"` // mm
	CutMarks     bool    `json:"cut_marks"`
	ColorProfile string  `json:"color_profile"`
	LabelScale   string  `json:"label_scale"` // fit, cover
	JPEGQuality  int     `json:"jpeg_quality"`
}

// PrintLayout is a composed sheet of labels. Immutable once exported;
// re-export regenerates the artifact instead of mutating it.
type PrintLayout struct {
	ID       uuid.UUID      `json:"id"`
	Paper    PaperFormat    `json:"paper_format"`
	Grid     GridLayout     `json:"grid_layout"`
	Labels   []string       `json:"labels"` // label image keys
	Settings RenderSettings `json:"settings"`
}
