// Package visualizer draws four bar graphs around a square cover image from
// per-frame frequency snapshots.
package visualizer

// Edge is the side of the cover image a bar group sits on. Bars grow away
// from the image, towards that edge.
type Edge int

const (
	Bottom Edge = iota
	Left
	Right
	Top
)

func (e Edge) String() string {
	switch e {
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	case Top:
		return "top"
	default:
		return "unknown"
	}
}

// Horizontal reports whether bars in this group are laid out along the x axis.
func (e Edge) Horizontal() bool { return e == Bottom || e == Top }

// BarGroup describes one edge's bars and the size of its canvas.
type BarGroup struct {
	Edge     Edge
	Bars     int
	Reversed bool
	Width    int
	Height   int
}

// Cover and strip sizes of the default layout, in pixels.
const (
	CoverSize  = 256
	StripDepth = 64
)

// DefaultLayout: 64 bars under the cover, 32 on each side, 64 above.
func DefaultLayout() []BarGroup {
	return []BarGroup{
		{Edge: Bottom, Bars: 64, Reversed: true, Width: CoverSize, Height: StripDepth},
		{Edge: Left, Bars: 32, Reversed: true, Width: StripDepth, Height: CoverSize},
		{Edge: Right, Bars: 32, Reversed: false, Width: StripDepth, Height: CoverSize},
		{Edge: Top, Bars: 64, Reversed: false, Width: CoverSize, Height: StripDepth},
	}
}

// FrequencyIndex maps bar i of bars onto a bin in [0, bins-1] by proportional
// scaling, floor(i/bars*bins), counting from the other end when reversed.
// It returns 0 when bins or bars is not positive.
func FrequencyIndex(i, bars, bins int, reversed bool) int {
	if bins <= 0 || bars <= 0 {
		return 0
	}
	i = max(0, min(i, bars-1))
	if reversed {
		i = bars - 1 - i
	}
	idx := i * bins / bars
	return max(0, min(idx, bins-1))
}
