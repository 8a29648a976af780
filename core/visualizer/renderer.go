package visualizer

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// GlowBlur matches the shadow blur of the bar glow.
const GlowBlur = 20

// Source is a per-frame frequency snapshot provider, e.g. an analyser node.
type Source interface {
	FrequencyBinCount() int
	GetByteFrequencyData(dst []byte)
}

// Renderer owns the smoothed bar heights of every group. Heights persist
// across frames and are reset only when the layout changes.
type Renderer struct {
	layout   []BarGroup
	canvases []Canvas
	heights  []float64
	offsets  []int
	data     []byte
}

// NewRenderer pairs each group with its canvas.
func NewRenderer(layout []BarGroup, canvases []Canvas) (*Renderer, error) {
	r := &Renderer{}
	if err := r.SetLayout(layout, canvases); err != nil {
		return nil, err
	}
	return r, nil
}

// SetLayout replaces the layout and resets every smoothed height.
func (r *Renderer) SetLayout(layout []BarGroup, canvases []Canvas) error {
	if len(layout) != len(canvases) {
		return fmt.Errorf("layout has %d groups, got %d canvases", len(layout), len(canvases))
	}
	offsets := make([]int, len(layout))
	total := 0
	for i, g := range layout {
		if g.Bars <= 0 {
			return fmt.Errorf("group %s has %d bars", g.Edge, g.Bars)
		}
		offsets[i] = total
		total += g.Bars
	}
	r.layout = layout
	r.canvases = canvases
	r.offsets = offsets
	r.heights = make([]float64, total)
	return nil
}

func (r *Renderer) Layout() []BarGroup { return r.layout }

func (r *Renderer) Canvases() []Canvas { return r.canvases }

// Heights returns the smoothed heights of group g.
func (r *Renderer) Heights(g int) []float64 {
	return r.heights[r.offsets[g] : r.offsets[g]+r.layout[g].Bars]
}

// Frame samples src once and redraws every group from a cleared canvas.
func (r *Renderer) Frame(src Source) {
	bins := 0
	if src != nil {
		bins = src.FrequencyBinCount()
	}
	if cap(r.data) < bins {
		r.data = make([]byte, bins)
	}
	r.data = r.data[:bins]
	if bins > 0 {
		src.GetByteFrequencyData(r.data)
	}

	for gi, g := range r.layout {
		c := r.canvases[gi]
		c.Clear()
		if bins == 0 {
			continue
		}
		w, h := c.Size()
		cross, length := float64(h), float64(w)
		if !g.Edge.Horizontal() {
			cross, length = float64(w), float64(h)
		}
		thickness := length / float64(g.Bars)
		heights := r.Heights(gi)

		for i := range g.Bars {
			idx := FrequencyIndex(i, g.Bars, bins, g.Reversed)
			target := float64(r.data[idx]) / 255 * cross
			heights[i] = Smooth(heights[i], target)

			var ratio float64
			if cross > 0 {
				ratio = target / cross
			}
			c.FillBar(barRect(g.Edge, i, thickness, heights[i], float64(w), float64(h)), g.Edge, paint(Hue(ratio)))
		}
	}
}

// barRect places bar i so it starts at the cover side and grows outwards.
func barRect(e Edge, i int, thickness, extent, w, h float64) Rect {
	pos := float64(i) * thickness
	switch e {
	case Bottom:
		return Rect{X: pos, Y: 0, W: thickness - 1, H: extent}
	case Top:
		return Rect{X: pos, Y: h - extent, W: thickness - 1, H: extent}
	case Left:
		return Rect{X: w - extent, Y: pos, W: extent, H: thickness - 1}
	default:
		return Rect{X: 0, Y: pos, W: extent, H: thickness - 1}
	}
}

func paint(hue float64) Paint {
	return Paint{
		Base:     colorful.Hsl(hue, 0.8, 0.4),
		Tip:      colorful.Hsl(hue, 1, 0.7),
		Glow:     colorful.Hsl(hue, 1, 0.6),
		GlowBlur: GlowBlur,
	}
}
