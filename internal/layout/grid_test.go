package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwerk/labelpress/internal/domain"
)

func TestCalculateOptimalGridA4(t *testing.T) {
	paper := domain.NewPaperFormat("a4", "portrait")

	grid := CalculateOptimalGrid(paper, 12, 2, domain.UniformMargins(5))

	// 3x4 fills all cells and keeps them near square
	assert.Equal(t, 3, grid.Columns)
	assert.Equal(t, 4, grid.Rows)
	assert.True(t, grid.AutoCalculate)

	cellW, cellH := CellSize(paper, grid)
	assert.InDelta(t, (210-10-2*2)/3.0, cellW, 0.001)
	assert.InDelta(t, (297-10-2*3)/4.0, cellH, 0.001)
	assert.GreaterOrEqual(t, cellW, MinCellMM)
	assert.GreaterOrEqual(t, cellH, MinCellMM)
}

func TestCalculateOptimalGridSingleLabel(t *testing.T) {
	paper := domain.NewPaperFormat("a4", "portrait")

	grid := CalculateOptimalGrid(paper, 1, 2, domain.UniformMargins(5))
	assert.Equal(t, 1, grid.Columns)
	assert.Equal(t, 1, grid.Rows)
}

func TestCalculateOptimalGridFitsAll(t *testing.T) {
	paper := domain.NewPaperFormat("a4", "portrait")

	for n := 1; n <= 100; n++ {
		grid := CalculateOptimalGrid(paper, n, 2, domain.UniformMargins(5))
		assert.GreaterOrEqual(t, grid.Columns*grid.Rows, n, "n=%d", n)
	}
}

func TestCalculateOptimalGridFallback(t *testing.T) {
	paper := domain.NewPaperFormat("a4", "portrait")

	// 100 labels cannot keep 20mm cells on A4, so the square fallback kicks in
	grid := CalculateOptimalGrid(paper, 100, 2, domain.UniformMargins(5))
	assert.Equal(t, 10, grid.Columns)
	assert.Equal(t, 10, grid.Rows)

	cellW, _ := CellSize(paper, grid)
	assert.Less(t, cellW, MinCellMM)
}

func TestCellRects(t *testing.T) {
	paper := domain.NewPaperFormat("a4", "portrait")
	grid := domain.GridLayout{Columns: 2, Rows: 2, Spacing: 2, Margins: domain.UniformMargins(5)}

	rects := cellRects(paper, grid)
	require.Len(t, rects, 4)

	// Row-major from the top-left margin
	assert.InDelta(t, 5, rects[0].X, 0.001)
	assert.InDelta(t, 5, rects[0].Y, 0.001)
	assert.InDelta(t, rects[0].X+rects[0].W+2, rects[1].X, 0.001)
	assert.InDelta(t, rects[0].Y, rects[1].Y, 0.001)
	assert.InDelta(t, rects[0].Y+rects[0].H+2, rects[2].Y, 0.001)

	// Last cell ends at the right margin
	assert.InDelta(t, 210-5, rects[3].X+rects[3].W, 0.001)
}
