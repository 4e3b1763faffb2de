package layout

import (
	"math"

	"github.com/printwerk/labelpress/internal/domain"
)

// MinCellMM is the smallest usable label cell edge. Grids whose cells
// would shrink below this are rejected during the search.
const MinCellMM = 20.0

const maxGridEdge = 10

// CalculateOptimalGrid searches for the column/row split that fits
// labelCount labels on the paper with the least waste. Candidate grids
// keep every cell at least MinCellMM square after margins and spacing;
// among those, the score penalizes empty cells and skewed aspect ratios.
// When no candidate qualifies the near-square fallback grid is returned
// even though its cells may be small.
func CalculateOptimalGrid(paper domain.PaperFormat, labelCount int, spacing float64, margins domain.Margins) domain.GridLayout {
	if labelCount < 1 {
		labelCount = 1
	}

	usableW := paper.Width - margins.Left - margins.Right
	usableH := paper.Height - margins.Top - margins.Bottom

	best := domain.GridLayout{}
	bestScore := math.Inf(1)

	for cols := 1; cols <= maxGridEdge; cols++ {
		for rows := 1; rows <= maxGridEdge; rows++ {
			if cols*rows < labelCount {
				continue
			}

			cellW := (usableW - spacing*float64(cols-1)) / float64(cols)
			cellH := (usableH - spacing*float64(rows-1)) / float64(rows)
			if cellW < MinCellMM || cellH < MinCellMM {
				continue
			}

			wasted := float64(cols*rows - labelCount)
			aspectPenalty := math.Abs(1 - cellW/cellH)
			score := wasted + 5*aspectPenalty

			if score < bestScore {
				bestScore = score
				best = domain.GridLayout{
					Columns:       cols,
					Rows:          rows,
					Spacing:       spacing,
					Margins:       margins,
					AutoCalculate: true,
				}
			}
		}
	}

	if best.Columns == 0 {
		edge := int(math.Ceil(math.Sqrt(float64(labelCount))))
		best = domain.GridLayout{
			Columns:       edge,
			Rows:          edge,
			Spacing:       spacing,
			Margins:       margins,
			AutoCalculate: true,
		}
	}
	return best
}

// CellSize returns the label cell dimensions in mm for a grid on paper
func CellSize(paper domain.PaperFormat, grid domain.GridLayout) (w, h float64) {
	usableW := paper.Width - grid.Margins.Left - grid.Margins.Right
	usableH := paper.Height - grid.Margins.Top - grid.Margins.Bottom

	w = (usableW - grid.Spacing*float64(grid.Columns-1)) / float64(grid.Columns)
	h = (usableH - grid.Spacing*float64(grid.Rows-1)) / float64(grid.Rows)
	return w, h
}

// cellRect is one label slot in sheet coordinates, millimetres
type cellRect struct {
	X, Y, W, H float64
}

// cellRects lays out the grid cells row-major from the top-left margin
func cellRects(paper domain.PaperFormat, grid domain.GridLayout) []cellRect {
	cellW, cellH := CellSize(paper, grid)

	rects := make([]cellRect, 0, grid.Columns*grid.Rows)
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Columns; col++ {
			rects = append(rects, cellRect{
				X: grid.Margins.Left + float64(col)*(cellW+grid.Spacing),
				Y: grid.Margins.Top + float64(row)*(cellH+grid.Spacing),
				W: cellW,
				H: cellH,
			})
		}
	}
	return rects
}
