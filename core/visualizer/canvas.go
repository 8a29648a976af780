package visualizer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Rect is a bar rectangle in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Paint describes how a bar is filled: a linear gradient from Base (the end
// touching the cover) to Tip, with a glow around it.
type Paint struct {
	Base colorful.Color
	Tip  colorful.Color
	Glow colorful.Color
	// GlowBlur is the glow radius in pixels.
	GlowBlur float64
}

// Canvas is a 2-D paint surface for one bar group.
type Canvas interface {
	Size() (w, h int)
	Clear()
	// FillBar paints r; grow is the edge the bar extends toward.
	FillBar(r Rect, grow Edge, p Paint)
}

// ImageCanvas paints into an RGBA image with a transparent background.
type ImageCanvas struct {
	img *image.RGBA
}

func NewImageCanvas(w, h int) *ImageCanvas {
	return &ImageCanvas{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (c *ImageCanvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *ImageCanvas) Clear() {
	clear(c.img.Pix)
}

func (c *ImageCanvas) Image() *image.RGBA { return c.img }

// FillBar draws the glow halo, then the gradient body.
func (c *ImageCanvas) FillBar(r Rect, grow Edge, p Paint) {
	x0, y0 := int(math.Round(r.X)), int(math.Round(r.Y))
	x1, y1 := int(math.Round(r.X+r.W)), int(math.Round(r.Y+r.H))
	if x1 <= x0 || y1 <= y0 {
		return
	}

	// glow: a halo whose opacity falls off with distance from the bar
	radius := int(math.Ceil(p.GlowBlur / 4))
	for y := y0 - radius; y < y1+radius; y++ {
		for x := x0 - radius; x < x1+radius; x++ {
			d := max(dist(x, x0, x1), dist(y, y0, y1))
			if d == 0 || d > radius {
				continue
			}
			alpha := 0.45 * (1 - float64(d)/float64(radius+1))
			c.blend(x, y, p.Glow, alpha)
		}
	}

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			t := gradientPos(grow, x, y, x0, y0, x1, y1)
			c.blend(x, y, p.Base.BlendRgb(p.Tip, t).Clamped(), 1)
		}
	}
}

// gradientPos is 0 at the base end of the bar and 1 at the tip.
func gradientPos(grow Edge, x, y, x0, y0, x1, y1 int) float64 {
	frac := func(v, lo, hi int) float64 {
		if hi-lo <= 1 {
			return 0
		}
		return float64(v-lo) / float64(hi-lo-1)
	}
	switch grow {
	case Bottom:
		return frac(y, y0, y1)
	case Top:
		return 1 - frac(y, y0, y1)
	case Right:
		return frac(x, x0, x1)
	default:
		return 1 - frac(x, x0, x1)
	}
}

func dist(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo - v
	case v >= hi:
		return v - hi + 1
	default:
		return 0
	}
}

func (c *ImageCanvas) blend(x, y int, col colorful.Color, alpha float64) {
	if !(image.Point{X: x, Y: y}).In(c.img.Bounds()) {
		return
	}
	i := c.img.PixOffset(x, y)
	pix := c.img.Pix[i : i+4 : i+4]
	r, g, b := col.RGB255()
	a := math.Max(0, math.Min(1, alpha))
	srcA := a
	dstA := float64(pix[3]) / 255
	outA := srcA + dstA*(1-srcA)
	if outA == 0 {
		return
	}
	mix := func(s uint8, d uint8) uint8 {
		v := (float64(s)*srcA + float64(d)*dstA*(1-srcA)) / outA
		return uint8(math.Round(v))
	}
	pix[0], pix[1], pix[2] = mix(r, pix[0]), mix(g, pix[1]), mix(b, pix[2])
	pix[3] = uint8(math.Round(outA * 255))
}

// WritePNG encodes the canvas.
func (c *ImageCanvas) WritePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}

// Compose lays the four strips of layout around cover and returns the frame.
// canvases must be ImageCanvas values in layout order.
func Compose(cover image.Image, layout []BarGroup, canvases []Canvas) (*image.RGBA, error) {
	if len(layout) != len(canvases) {
		return nil, fmt.Errorf("layout has %d groups, got %d canvases", len(layout), len(canvases))
	}
	size := CoverSize + 2*StripDepth
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: color.RGBA{A: 255}}, image.Point{}, draw.Src)

	coverRect := image.Rect(StripDepth, StripDepth, StripDepth+CoverSize, StripDepth+CoverSize)
	if cover != nil {
		draw.Draw(out, coverRect, cover, cover.Bounds().Min, draw.Over)
	}

	for i, g := range layout {
		ic, ok := canvases[i].(*ImageCanvas)
		if !ok {
			return nil, fmt.Errorf("canvas %d is %T, want *ImageCanvas", i, canvases[i])
		}
		var at image.Point
		switch g.Edge {
		case Bottom:
			at = image.Pt(StripDepth, StripDepth+CoverSize)
		case Top:
			at = image.Pt(StripDepth, 0)
		case Left:
			at = image.Pt(0, StripDepth)
		case Right:
			at = image.Pt(StripDepth+CoverSize, StripDepth)
		}
		r := ic.img.Bounds().Add(at)
		draw.Draw(out, r, ic.img, image.Point{}, draw.Over)
	}
	return out, nil
}
