package analyser

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

const (
	DefaultFFTSize               = 256
	DefaultSmoothingTimeConstant = 0.8
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0
)

// AnalyserNode captures the signal passing through it and computes
// frequency-domain snapshots on demand. It passes audio through unchanged.
type AnalyserNode struct {
	base

	mu          sync.Mutex
	fftSize     int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	ring     []float64
	pos      int
	window   []float64
	frame    []float64
	smoothed []float64
}

func newAnalyserNode(c *Context, fftSize int) *AnalyserNode {
	a := &AnalyserNode{
		base:        base{ctx: c},
		fftSize:     fftSize,
		smoothing:   DefaultSmoothingTimeConstant,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
		ring:        make([]float64, fftSize),
		frame:       make([]float64, fftSize),
		smoothed:    make([]float64, fftSize/2),
	}
	a.window = blackman(fftSize)
	return a
}

func (a *AnalyserNode) Connect(dst Node) (Node, error) { return a.connect(dst) }

func (a *AnalyserNode) FFTSize() int { return a.fftSize }

// FrequencyBinCount is half the FFT size.
func (a *AnalyserNode) FrequencyBinCount() int { return a.fftSize / 2 }

// SetSmoothingTimeConstant sets the time smoothing factor, clamped to [0,1].
func (a *AnalyserNode) SetSmoothingTimeConstant(s float64) {
	a.mu.Lock()
	a.smoothing = max(0, min(1, s))
	a.mu.Unlock()
}

// write captures a mono mix into the ring buffer.
func (a *AnalyserNode) write(samples [][2]float64) {
	a.mu.Lock()
	for i := range samples {
		a.ring[a.pos] = (samples[i][0] + samples[i][1]) / 2
		a.pos = (a.pos + 1) % len(a.ring)
	}
	a.mu.Unlock()
}

// GetByteFrequencyData fills dst with the current spectrum scaled to 0..255
// over [minDecibels, maxDecibels]. At most FrequencyBinCount bytes are written.
func (a *AnalyserNode) GetByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.fftSize
	for i := range n {
		a.frame[i] = a.ring[(a.pos+i)%n] * a.window[i]
	}
	spectrum := fft.FFTReal(a.frame)

	rangeDB := a.maxDecibels - a.minDecibels
	bins := min(len(dst), n/2)
	for k := range n / 2 {
		mag := cmplx.Abs(spectrum[k]) / float64(n)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if k >= bins {
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		scaled := (db - a.minDecibels) / rangeDB * 255
		switch {
		case math.IsNaN(scaled) || scaled <= 0:
			dst[k] = 0
		case scaled >= 255:
			dst[k] = 255
		default:
			dst[k] = byte(scaled)
		}
	}
}

// blackman returns the Blackman window (alpha 0.16) of length n.
func blackman(n int) []float64 {
	w := make([]float64, n)
	for i := range n {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return w
}
