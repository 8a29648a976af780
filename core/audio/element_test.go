package audio

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = beep.SampleRate(8000)

// pullOutput is an Output the test drives by hand.
type pullOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
}

func (o *pullOutput) Play(s ...beep.Streamer) {
	o.mu.Lock()
	o.streamers = append(o.streamers, s...)
	o.mu.Unlock()
}

func (o *pullOutput) Clear() {
	o.mu.Lock()
	o.streamers = nil
	o.mu.Unlock()
}

func (o *pullOutput) Lock()   { o.mu.Lock() }
func (o *pullOutput) Unlock() { o.mu.Unlock() }

// pull renders n samples and returns their peak amplitude.
func (o *pullOutput) pull(n int) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	buf := make([][2]float64, n)
	var peak float64
	kept := o.streamers[:0]
	for _, s := range o.streamers {
		got, ok := s.Stream(buf)
		for i := 0; i < got; i++ {
			peak = math.Max(peak, math.Abs(buf[i][0]))
		}
		if ok {
			kept = append(kept, s)
		}
	}
	o.streamers = kept
	return peak
}

func sine(freq float64, rate beep.SampleRate) beep.Streamer {
	var t int
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := 0.5 * math.Sin(2*math.Pi*freq*float64(t)/float64(rate))
			samples[i] = [2]float64{v, v}
			t++
		}
		return len(samples), true
	})
}

func writeWAV(t *testing.T, d time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Take(testRate.N(d), sine(440, testRate)), format))
	require.NoError(t, f.Close())
	return path
}

func waitFor(t *testing.T, el Element, typ EventType) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-el.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestBeepElementLoadPlaySeek(t *testing.T) {
	out := &pullOutput{}
	el := NewBeepElement(out, testRate, nil)
	defer el.Close()

	path := writeWAV(t, 2*time.Second)
	id := el.Load(path)

	ready := waitFor(t, el, EventReady)
	assert.Equal(t, id, ready.LoadID)
	assert.Equal(t, 2*time.Second, ready.Duration)
	assert.True(t, el.Paused())

	require.NoError(t, el.Play())
	assert.False(t, el.Paused())
	assert.Greater(t, out.pull(testRate.N(time.Second/2)), 0.1)
	assert.Equal(t, time.Second/2, el.CurrentTime())

	el.SetCurrentTime(-time.Second)
	assert.Equal(t, time.Duration(0), el.CurrentTime())
	el.SetCurrentTime(10 * time.Second)
	assert.Equal(t, 2*time.Second, el.CurrentTime())

	el.SetCurrentTime(time.Second)
	el.Pause()
	assert.Zero(t, out.pull(100), "paused output is silent")
	assert.Equal(t, time.Second, el.CurrentTime())
}

func TestBeepElementVolumeAndEnded(t *testing.T) {
	out := &pullOutput{}
	el := NewBeepElement(out, testRate, nil)
	defer el.Close()

	el.Load(writeWAV(t, time.Second/4))
	waitFor(t, el, EventReady)

	el.SetVolume(0)
	require.NoError(t, el.Play())
	assert.Zero(t, out.pull(100))

	el.SetVolume(2)
	assert.Equal(t, 1.0, el.Volume())

	out.pull(testRate.N(time.Second))
	waitFor(t, el, EventEnded)
	assert.True(t, el.Paused())

	// playing again after the end restarts from the top
	require.NoError(t, el.Play())
	assert.Equal(t, time.Duration(0), el.CurrentTime())
}

func TestBeepElementLoadErrors(t *testing.T) {
	el := NewBeepElement(&pullOutput{}, testRate, nil)
	defer el.Close()

	assert.ErrorIs(t, el.Play(), ErrNoSource)

	id := el.Load(filepath.Join(t.TempDir(), "missing.mp3"))
	ev := waitFor(t, el, EventError)
	assert.Equal(t, id, ev.LoadID)
	assert.Error(t, ev.Err)
	assert.ErrorIs(t, el.Play(), ErrNoSource)
}

func TestBeepElementSupersededLoad(t *testing.T) {
	el := NewBeepElement(&pullOutput{}, testRate, nil)
	defer el.Close()

	a := writeWAV(t, time.Second)
	b := writeWAV(t, 3*time.Second)
	el.Load(a)
	idB := el.Load(b)

	for {
		ev := waitFor(t, el, EventReady)
		if ev.LoadID == idB {
			assert.Equal(t, 3*time.Second, ev.Duration)
			break
		}
	}
	assert.Equal(t, b, el.Src())
	assert.Equal(t, 3*time.Second, el.Duration())
}

type muteGraph struct{ name string }

func (*muteGraph) Process(in beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := in.Stream(samples)
		for i := range n {
			samples[i] = [2]float64{}
		}
		return n, ok
	})
}

func TestBeepElementBindGraph(t *testing.T) {
	out := &pullOutput{}
	el := NewBeepElement(out, testRate, nil)
	defer el.Close()

	el.Load(writeWAV(t, 2*time.Second))
	waitFor(t, el, EventReady)
	require.NoError(t, el.Play())

	g := &muteGraph{name: "a"}
	require.NoError(t, el.BindGraph(g))
	assert.ErrorIs(t, el.BindGraph(&muteGraph{name: "b"}), ErrAlreadyBound)
	assert.Zero(t, out.pull(200))
	assert.Greater(t, el.CurrentTime(), time.Duration(0), "source keeps advancing under the graph")

	require.NoError(t, el.BindGraph(nil))
	assert.Greater(t, out.pull(200), 0.1)
}

func TestDetectCodec(t *testing.T) {
	assert.Equal(t, codecWAV, detectCodec("http://x/a.WAV?sig=1", ""))
	assert.Equal(t, codecMP3, detectCodec("/tmp/a.mp3", "audio/wav"))
	assert.Equal(t, codecWAV, detectCodec("http://x/blob", "audio/x-wav"))
	assert.Equal(t, codecMP3, detectCodec("http://x/blob", ""))
}
