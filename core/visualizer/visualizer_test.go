package visualizer

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource []byte

func (f fixedSource) FrequencyBinCount() int { return len(f) }
func (f fixedSource) GetByteFrequencyData(dst []byte) {
	copy(dst, f)
}

func level(v byte) fixedSource {
	s := make(fixedSource, 128)
	for i := range s {
		s[i] = v
	}
	return s
}

type call struct {
	clear bool
	rect  Rect
	grow  Edge
}

// recordingCanvas logs every operation.
type recordingCanvas struct {
	w, h  int
	calls []call
}

func (c *recordingCanvas) Size() (int, int) { return c.w, c.h }
func (c *recordingCanvas) Clear()           { c.calls = append(c.calls, call{clear: true}) }
func (c *recordingCanvas) FillBar(r Rect, grow Edge, _ Paint) {
	c.calls = append(c.calls, call{rect: r, grow: grow})
}

func recordingCanvases(layout []BarGroup) ([]Canvas, []*recordingCanvas) {
	out := make([]Canvas, len(layout))
	rec := make([]*recordingCanvas, len(layout))
	for i, g := range layout {
		rec[i] = &recordingCanvas{w: g.Width, h: g.Height}
		out[i] = rec[i]
	}
	return out, rec
}

func TestFrequencyIndexStaysInBounds(t *testing.T) {
	for bins := 1; bins <= 300; bins++ {
		for bars := 1; bars <= 100; bars++ {
			for i := 0; i < bars; i++ {
				for _, rev := range []bool{false, true} {
					idx := FrequencyIndex(i, bars, bins, rev)
					if idx < 0 || idx > bins-1 {
						t.Fatalf("FrequencyIndex(%d, %d, %d, %v) = %d", i, bars, bins, rev, idx)
					}
				}
			}
		}
	}
	assert.Equal(t, 0, FrequencyIndex(0, 64, 0, false))
}

func TestFrequencyIndexDirection(t *testing.T) {
	assert.Equal(t, 0, FrequencyIndex(0, 64, 128, false))
	assert.Equal(t, 126, FrequencyIndex(63, 64, 128, false))
	assert.Equal(t, 126, FrequencyIndex(0, 64, 128, true))
	assert.Equal(t, 0, FrequencyIndex(63, 64, 128, true))
	assert.Equal(t, 124, FrequencyIndex(31, 32, 128, false))
}

func TestSmoothConvergesWithoutOvershoot(t *testing.T) {
	for _, tc := range []struct{ start, target float64 }{
		{0, 64}, {64, 0}, {10, 10}, {200, 37.5},
	} {
		prev := tc.start
		for range 200 {
			next := Smooth(prev, tc.target)
			if tc.start <= tc.target {
				assert.GreaterOrEqual(t, next, prev)
				assert.LessOrEqual(t, next, tc.target)
			} else {
				assert.LessOrEqual(t, next, prev)
				assert.GreaterOrEqual(t, next, tc.target)
			}
			prev = next
		}
		assert.InDelta(t, tc.target, prev, 1e-6)
	}
	assert.Equal(t, 12.8, Smooth(0, 64))
}

func TestHueRange(t *testing.T) {
	assert.Equal(t, 200.0, Hue(0))
	assert.Equal(t, 340.0, Hue(1))
	assert.Equal(t, 270.0, Hue(0.5))
	assert.Equal(t, 340.0, Hue(3))
}

func TestDefaultLayout(t *testing.T) {
	layout := DefaultLayout()
	require.Len(t, layout, 4)
	want := []struct {
		edge     Edge
		bars     int
		reversed bool
	}{{Bottom, 64, true}, {Left, 32, true}, {Right, 32, false}, {Top, 64, false}}
	for i, w := range want {
		assert.Equal(t, w.edge, layout[i].Edge)
		assert.Equal(t, w.bars, layout[i].Bars)
		assert.Equal(t, w.reversed, layout[i].Reversed)
	}
}

func TestFrameClearsBeforeDrawing(t *testing.T) {
	layout := DefaultLayout()
	canvases, rec := recordingCanvases(layout)
	r, err := NewRenderer(layout, canvases)
	require.NoError(t, err)

	for frame := 0; frame < 3; frame++ {
		r.Frame(level(255))
	}
	for gi, c := range rec {
		per := layout[gi].Bars + 1
		require.Len(t, c.calls, 3*per)
		for f := 0; f < 3; f++ {
			assert.True(t, c.calls[f*per].clear, "frame %d of %s starts with a clear", f, layout[gi].Edge)
			for _, cl := range c.calls[f*per+1 : (f+1)*per] {
				assert.False(t, cl.clear)
				assert.Equal(t, layout[gi].Edge, cl.grow)
			}
		}
	}
}

func TestFrameGeometry(t *testing.T) {
	layout := DefaultLayout()
	canvases, rec := recordingCanvases(layout)
	r, err := NewRenderer(layout, canvases)
	require.NoError(t, err)

	r.Frame(level(255))

	// first frame moves 20% of the way to full height
	bottom := rec[0].calls[1].rect
	assert.Equal(t, Rect{X: 0, Y: 0, W: 3, H: 12.8}, bottom)

	left := rec[1].calls[2].rect
	assert.InDelta(t, 51.2, left.X, 1e-9)
	assert.Equal(t, 8.0, left.Y)
	assert.Equal(t, 7.0, left.H)

	right := rec[2].calls[1].rect
	assert.Equal(t, 0.0, right.X)

	top := rec[3].calls[1].rect
	assert.InDelta(t, 51.2, top.Y, 1e-9)

	for _, h := range r.Heights(0) {
		assert.Equal(t, 12.8, h)
	}
}

func TestFrameWithoutBinsOnlyClears(t *testing.T) {
	layout := DefaultLayout()
	canvases, rec := recordingCanvases(layout)
	r, _ := NewRenderer(layout, canvases)

	r.Frame(fixedSource{})
	for _, c := range rec {
		require.Len(t, c.calls, 1)
		assert.True(t, c.calls[0].clear)
	}
}

func TestImageCanvasClearsFully(t *testing.T) {
	layout := DefaultLayout()
	canvases := make([]Canvas, len(layout))
	for i, g := range layout {
		canvases[i] = NewImageCanvas(g.Width, g.Height)
	}
	r, _ := NewRenderer(layout, canvases)

	r.Frame(level(255))
	img := canvases[0].(*ImageCanvas).Image()
	assert.NotZero(t, img.RGBAAt(1, 1).A)

	canvases[0].Clear()
	for _, p := range img.Pix {
		require.Zero(t, p)
	}

	frame, err := Compose(image.NewRGBA(image.Rect(0, 0, CoverSize, CoverSize)), layout, canvases)
	require.NoError(t, err)
	assert.Equal(t, CoverSize+2*StripDepth, frame.Bounds().Dx())

	var buf bytes.Buffer
	require.NoError(t, canvases[1].(*ImageCanvas).WritePNG(&buf))
	assert.NotZero(t, buf.Len())
}

func TestLoopIgnoresStaleTokens(t *testing.T) {
	layout := DefaultLayout()
	canvases, _ := recordingCanvases(layout)
	r, _ := NewRenderer(layout, canvases)
	v := New(r)

	tok1, ok := v.Update(level(100), true)
	require.True(t, ok)
	assert.Equal(t, 1, v.Frames())

	tok2, ok := v.Update(level(100), true)
	require.True(t, ok)
	assert.Equal(t, 2, v.Frames())

	_, ok = v.Tick(tok1)
	assert.False(t, ok, "superseded token")
	assert.Equal(t, 2, v.Frames())

	tok3, ok := v.Tick(tok2)
	require.True(t, ok)
	assert.Equal(t, 3, v.Frames())

	// pausing cancels the pending frame
	_, ok = v.Update(level(100), false)
	assert.False(t, ok)
	_, ok = v.Tick(tok3)
	assert.False(t, ok)
	assert.Equal(t, 3, v.Frames())

	_, ok = v.Update(nil, true)
	assert.False(t, ok, "no analyser, no frames")

	tok4, ok := v.Update(level(100), true)
	require.True(t, ok)
	v.Stop()
	_, ok = v.Tick(tok4)
	assert.False(t, ok)
	_, ok = v.Update(level(100), true)
	assert.False(t, ok)
	assert.Equal(t, 4, v.Frames())
}
