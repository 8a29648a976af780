package tui

import (
	"math"
	"strings"

	"songforge/core/visualizer"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Terminal geometry of the expanded view, in cells.
const (
	stripRows = 4
	sideCols  = 12
	coverCols = 64
	coverRows = 16
)

type cell struct {
	on  bool
	col colorful.Color
}

// TermCanvas is a visualizer.Canvas backed by a grid of terminal cells. It
// keeps the pixel size of its bar group so the renderer's geometry is
// unchanged; every pixel rectangle is projected onto the grid.
type TermCanvas struct {
	w, h       int // logical pixels
	cols, rows int
	cells      []cell
	styles     map[string]lipgloss.Style
}

// NewTermCanvas maps a w×h pixel surface onto cols×rows cells.
func NewTermCanvas(w, h, cols, rows int) *TermCanvas {
	return &TermCanvas{
		w: w, h: h, cols: cols, rows: rows,
		cells:  make([]cell, cols*rows),
		styles: make(map[string]lipgloss.Style),
	}
}

func (c *TermCanvas) Size() (int, int) { return c.w, c.h }

func (c *TermCanvas) Clear() {
	clear(c.cells)
}

// FillBar lights every cell r covers. Along the growth axis the extent is
// rounded so a near-silent bar leaves its cells dark. Terminals cannot blur,
// so the glow is dropped and only the base-to-tip gradient is kept.
func (c *TermCanvas) FillBar(r visualizer.Rect, grow visualizer.Edge, p visualizer.Paint) {
	if r.W <= 0 || r.H <= 0 {
		return
	}
	sx := float64(c.cols) / float64(c.w)
	sy := float64(c.rows) / float64(c.h)

	var c0, c1, r0, r1 int
	if grow.Horizontal() {
		// 纵向生长的竖条
		c0, c1 = int(math.Floor(r.X*sx)), int(math.Ceil((r.X+r.W)*sx))
		r0, r1 = int(math.Round(r.Y*sy)), int(math.Round((r.Y+r.H)*sy))
	} else {
		c0, c1 = int(math.Round(r.X*sx)), int(math.Round((r.X+r.W)*sx))
		r0, r1 = int(math.Floor(r.Y*sy)), int(math.Ceil((r.Y+r.H)*sy))
	}
	c0, c1 = max(0, c0), min(c.cols, c1)
	r0, r1 = max(0, r0), min(c.rows, r1)

	for y := r0; y < r1; y++ {
		for x := c0; x < c1; x++ {
			t := gradientAt(grow, (float64(x)+0.5)/sx, (float64(y)+0.5)/sy, r)
			c.cells[y*c.cols+x] = cell{on: true, col: p.Base.BlendHcl(p.Tip, t).Clamped()}
		}
	}
}

// gradientAt is 0 at the cover side of the bar and 1 at its tip.
func gradientAt(grow visualizer.Edge, px, py float64, r visualizer.Rect) float64 {
	var t float64
	switch grow {
	case visualizer.Bottom:
		t = (py - r.Y) / r.H
	case visualizer.Top:
		t = (r.Y + r.H - py) / r.H
	case visualizer.Left:
		t = (r.X + r.W - px) / r.W
	default:
		t = (px - r.X) / r.W
	}
	return max(0, min(1, t))
}

// Lit reports whether the cell at (col, row) is painted.
func (c *TermCanvas) Lit(col, row int) bool {
	if col < 0 || col >= c.cols || row < 0 || row >= c.rows {
		return false
	}
	return c.cells[row*c.cols+col].on
}

// Lines renders the grid, one string per row.
func (c *TermCanvas) Lines() []string {
	lines := make([]string, c.rows)
	var b strings.Builder
	for y := 0; y < c.rows; y++ {
		b.Reset()
		for x := 0; x < c.cols; x++ {
			cl := c.cells[y*c.cols+x]
			if !cl.on {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(c.style(cl.col).Render("█"))
		}
		lines[y] = b.String()
	}
	return lines
}

func (c *TermCanvas) style(col colorful.Color) lipgloss.Style {
	hex := col.Hex()
	s, ok := c.styles[hex]
	if !ok {
		s = lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
		c.styles[hex] = s
	}
	return s
}

// newStage builds the renderer's canvases in layout order.
func newStage(layout []visualizer.BarGroup) []*TermCanvas {
	out := make([]*TermCanvas, len(layout))
	for i, g := range layout {
		if g.Edge.Horizontal() {
			out[i] = NewTermCanvas(g.Width, g.Height, coverCols, stripRows)
		} else {
			out[i] = NewTermCanvas(g.Width, g.Height, sideCols, coverRows)
		}
	}
	return out
}
