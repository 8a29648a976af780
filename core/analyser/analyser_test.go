package analyser

import (
	"math"
	"testing"

	"songforge/core/audio"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rate = 8000

// graphElement is an audio.Element that only implements graph binding; the
// test pulls the bound graph directly.
type graphElement struct {
	audio.Element
	graph audio.Graph
}

func (e *graphElement) BindGraph(g audio.Graph) error {
	if g != nil && e.graph != nil && e.graph != g {
		return audio.ErrAlreadyBound
	}
	e.graph = g
	return nil
}

// output builds what the element would play for the given source.
func (e *graphElement) output(src beep.Streamer) beep.Streamer {
	if e.graph == nil {
		return src
	}
	return e.graph.Process(src)
}

// bin 16 of a 256-point FFT at 8kHz is exactly 500Hz.
func sine(freq float64) beep.Streamer {
	var t int
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := 0.5 * math.Sin(2*math.Pi*freq*float64(t)/rate)
			samples[i] = [2]float64{v, v}
			t++
		}
		return len(samples), true
	})
}

func peak(s beep.Streamer, n int) float64 {
	buf := make([][2]float64, n)
	got, _ := s.Stream(buf)
	var p float64
	for i := 0; i < got; i++ {
		p = math.Max(p, math.Abs(buf[i][0]))
	}
	return p
}

func TestBridgeAttachRoutesAudioThroughAnalyser(t *testing.T) {
	el := &graphElement{}
	b := NewBridge()

	an, err := b.Attach(el)
	require.NoError(t, err)
	require.NotNil(t, an)
	assert.Equal(t, 256, an.FFTSize())
	assert.Equal(t, 128, an.FrequencyBinCount())

	out := el.output(sine(500))
	assert.Greater(t, peak(out, 512), 0.4, "source -> analyser -> destination is audible")

	data := make([]byte, an.FrequencyBinCount())
	for range 20 {
		peak(out, 256)
		an.GetByteFrequencyData(data)
	}
	assert.Equal(t, byte(255), data[16])
	assert.Greater(t, data[16], data[14])
	assert.Zero(t, data[40])
	assert.Zero(t, data[100])
}

func TestDetachReleasesElement(t *testing.T) {
	el := &graphElement{}
	b := NewBridge()

	_, err := b.Attach(el)
	require.NoError(t, err)
	first := el.graph

	// re-attaching tears the old graph down before binding a new one
	an, err := b.Attach(el)
	require.NoError(t, err)
	assert.NotNil(t, an)
	assert.NotSame(t, first, el.graph)

	b.Detach()
	assert.Nil(t, el.graph)
	assert.Nil(t, b.Analyser())
}

func TestAttachFailureReturnsNoAnalyser(t *testing.T) {
	el := &graphElement{}
	other := NewContext()
	_, err := other.CreateMediaElementSource(el)
	require.NoError(t, err)

	an, err := NewBridge().Attach(el)
	assert.ErrorIs(t, err, audio.ErrAlreadyBound)
	assert.Nil(t, an)
}

func TestBrokenChainIsSilentButAdvances(t *testing.T) {
	el := &graphElement{}
	ctx := NewContext()
	src, err := ctx.CreateMediaElementSource(el)
	require.NoError(t, err)
	an, err := ctx.CreateAnalyser()
	require.NoError(t, err)
	_, err = src.Connect(an)
	require.NoError(t, err)
	require.NoError(t, ctx.Resume())

	var pulled int
	counting := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		pulled += len(samples)
		return sine(500).Stream(samples)
	})
	out := el.output(counting)
	assert.Zero(t, peak(out, 256), "analyser not connected to destination")
	assert.Equal(t, 256, pulled)

	_, err = an.Connect(ctx.Destination())
	require.NoError(t, err)
	assert.Greater(t, peak(out, 256), 0.1)

	require.NoError(t, ctx.Suspend())
	assert.Zero(t, peak(out, 256), "suspended context outputs silence")
}

func TestContextClosed(t *testing.T) {
	el := &graphElement{}
	ctx := NewContext()
	_, err := ctx.CreateMediaElementSource(el)
	require.NoError(t, err)
	_, err = ctx.CreateMediaElementSource(el)
	assert.ErrorIs(t, err, ErrSourceExists)

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	assert.Equal(t, Closed, ctx.State())
	assert.ErrorIs(t, ctx.Resume(), ErrContextClosed)
	_, err = ctx.CreateAnalyser()
	assert.ErrorIs(t, err, ErrContextClosed)

	_, err = ctx.Destination().Connect(NewContext().Destination())
	assert.Error(t, err)
}

func TestSilenceReadsZero(t *testing.T) {
	an := newAnalyserNode(NewContext(), DefaultFFTSize)
	data := make([]byte, 128)
	for i := range data {
		data[i] = 7
	}
	an.GetByteFrequencyData(data)
	for _, v := range data {
		assert.Zero(t, v)
	}
}
