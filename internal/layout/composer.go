package layout

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/storage"
)

// Render defaults applied when a layout leaves them unset
const (
	DefaultDPI         = 300
	DefaultJPEGQuality = 90
)

const cutMarkLengthMM = 3.0

// Composer builds print sheets from stored label images
type Composer struct {
	store storage.BlobStore
}

// NewComposer creates a Composer reading label images from store
func NewComposer(store storage.BlobStore) *Composer {
	return &Composer{store: store}
}

// CreateLayout arranges label image keys on a sheet per cfg. When the
// grid is auto-calculated it picks the best-fitting split for the label
// count.
func (c *Composer) CreateLayout(labels []string, cfg domain.RenderConfig) (*domain.PrintLayout, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels to lay out", domain.ErrValidation)
	}

	paper := domain.NewPaperFormat(cfg.PaperType, cfg.Orientation)
	margins := domain.UniformMargins(cfg.MarginMM)
	grid := CalculateOptimalGrid(paper, len(labels), cfg.SpacingMM, margins)

	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	scale := cfg.LabelScale
	if scale == "" {
		scale = "fit"
	}

	layout := &domain.PrintLayout{
		ID:     uuid.New(),
		Paper:  paper,
		Grid:   grid,
		Labels: append([]string(nil), labels...),
		Settings: domain.RenderSettings{
			DPI:         dpi,
			CutMarks:    cfg.CutMarks,
			LabelScale:  scale,
			JPEGQuality: DefaultJPEGQuality,
		},
	}

	if err := ValidateLayout(layout); err != nil {
		return nil, err
	}
	return layout, nil
}

// ValidateLayout checks that a layout is geometrically printable
func ValidateLayout(l *domain.PrintLayout) error {
	if l.Grid.Columns < 1 || l.Grid.Rows < 1 {
		return fmt.Errorf("%w: grid %dx%d", domain.ErrValidation, l.Grid.Columns, l.Grid.Rows)
	}
	if len(l.Labels) > l.Grid.Columns*l.Grid.Rows {
		return fmt.Errorf("%w: %d labels exceed %d cells", domain.ErrValidation, len(l.Labels), l.Grid.Columns*l.Grid.Rows)
	}

	cellW, cellH := CellSize(l.Paper, l.Grid)
	if cellW <= 0 || cellH <= 0 {
		return fmt.Errorf("%w: margins and spacing leave no printable area", domain.ErrValidation)
	}
	if l.Settings.DPI <= 0 {
		return fmt.Errorf("%w: dpi %d", domain.ErrValidation, l.Settings.DPI)
	}
	return nil
}

// ExportPNG rasterizes the sheet. Rendering is deterministic: the same
// layout and label images always produce identical bytes.
func (c *Composer) ExportPNG(ctx context.Context, l *domain.PrintLayout) ([]byte, error) {
	if err := ValidateLayout(l); err != nil {
		return nil, err
	}

	dpi := l.Settings.DPI
	sheetW := MMToPixels(l.Paper.Width, dpi)
	sheetH := MMToPixels(l.Paper.Height, dpi)

	dc := gg.NewContext(sheetW, sheetH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	rects := cellRects(l.Paper, l.Grid)
	for i, key := range l.Labels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := c.loadLabel(ctx, key)
		if err != nil {
			return nil, err
		}

		cell := rects[i]
		cellPxW := MMToPixels(cell.W, dpi)
		cellPxH := MMToPixels(cell.H, dpi)

		var scaled image.Image
		if l.Settings.LabelScale == "cover" {
			scaled = imaging.Fill(img, cellPxW, cellPxH, imaging.Center, imaging.Lanczos)
		} else {
			scaled = imaging.Fit(img, cellPxW, cellPxH, imaging.Lanczos)
		}

		// Center the scaled label inside its cell
		x := MMToPixels(cell.X, dpi) + (cellPxW-scaled.Bounds().Dx())/2
		y := MMToPixels(cell.Y, dpi) + (cellPxH-scaled.Bounds().Dy())/2
		dc.DrawImage(scaled, x, y)
	}

	if l.Settings.CutMarks {
		drawCutMarks(dc, rects, dpi)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportJPEG renders the PNG pipeline and recompresses to JPEG
func (c *Composer) ExportJPEG(ctx context.Context, l *domain.PrintLayout) ([]byte, error) {
	raw, err := c.ExportPNG(ctx, l)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}

	quality := l.Settings.JPEGQuality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportPDF composes the sheet as a single-page vector-positioned PDF
// with each label embedded at its cell position.
func (c *Composer) ExportPDF(ctx context.Context, l *domain.PrintLayout) ([]byte, error) {
	if err := ValidateLayout(l); err != nil {
		return nil, err
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size: fpdf.SizeType{
			Wd: MMToPoints(l.Paper.Width),
			Ht: MMToPoints(l.Paper.Height),
		},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	rects := cellRects(l.Paper, l.Grid)
	for i, key := range l.Labels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("label %s: %w", key, err)
		}

		img, err := imaging.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("label %s: decode: %w", key, err)
		}

		cell := rects[i]
		w, h := fitDimensions(img, cell.W, cell.H)

		name := fmt.Sprintf("label-%d", i)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(toPNG(img)))
		pdf.ImageOptions(name,
			MMToPoints(cell.X+(cell.W-w)/2),
			MMToPoints(cell.Y+(cell.H-h)/2),
			MMToPoints(w), MMToPoints(h),
			false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	if l.Settings.CutMarks {
		drawPDFCutMarks(pdf, rects)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Export renders the layout in the named format (png, jpeg, pdf)
func (c *Composer) Export(ctx context.Context, l *domain.PrintLayout, format string) ([]byte, error) {
	switch format {
	case "", "png":
		return c.ExportPNG(ctx, l)
	case "jpeg", "jpg":
		return c.ExportJPEG(ctx, l)
	case "pdf":
		return c.ExportPDF(ctx, l)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", domain.ErrValidation, format)
	}
}

func (c *Composer) loadLabel(ctx context.Context, key string) (image.Image, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("label %s: %w", key, err)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("label %s: decode: %w", key, err)
	}
	return img, nil
}

// fitDimensions scales img to fit a cell in mm, preserving aspect ratio
func fitDimensions(img image.Image, cellW, cellH float64) (w, h float64) {
	b := img.Bounds()
	ratio := float64(b.Dx()) / float64(b.Dy())

	w, h = cellW, cellW/ratio
	if h > cellH {
		h = cellH
		w = cellH * ratio
	}
	return w, h
}

func toPNG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, img, imaging.PNG)
	return buf.Bytes()
}

// drawCutMarks strokes short corner marks around every cell
func drawCutMarks(dc *gg.Context, rects []cellRect, dpi int) {
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)

	mark := float64(MMToPixels(cutMarkLengthMM, dpi))
	for _, cell := range rects {
		x0 := float64(MMToPixels(cell.X, dpi))
		y0 := float64(MMToPixels(cell.Y, dpi))
		x1 := float64(MMToPixels(cell.X+cell.W, dpi))
		y1 := float64(MMToPixels(cell.Y+cell.H, dpi))

		for _, corner := range [][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
			dc.DrawLine(corner[0]-mark/2, corner[1], corner[0]+mark/2, corner[1])
			dc.DrawLine(corner[0], corner[1]-mark/2, corner[0], corner[1]+mark/2)
		}
	}
	dc.Stroke()
}

func drawPDFCutMarks(pdf *fpdf.Fpdf, rects []cellRect) {
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)

	mark := MMToPoints(cutMarkLengthMM)
	for _, cell := range rects {
		x0, y0 := MMToPoints(cell.X), MMToPoints(cell.Y)
		x1, y1 := MMToPoints(cell.X+cell.W), MMToPoints(cell.Y+cell.H)

		for _, corner := range [][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
			pdf.Line(corner[0]-mark/2, corner[1], corner[0]+mark/2, corner[1])
			pdf.Line(corner[0], corner[1]-mark/2, corner[0], corner[1]+mark/2)
		}
	}
}
