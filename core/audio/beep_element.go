package audio

import (
	"context"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
)

const timeUpdateInterval = 250 * time.Millisecond

// BeepElement plays one source at a time through beep:
//
//	[Decode] -> [Resample] -> [Volume] -> [Graph] -> [Ctrl] -> [Output]
//
// The graph stage is swappable so an analyser can be attached to a live
// element without rebuilding the pipeline.
type BeepElement struct {
	out    Output
	sr     beep.SampleRate
	client *http.Client

	mu     sync.Mutex
	loadID uint64
	src    string
	stream beep.StreamSeekCloser
	format beep.Format
	stage  *graphStage
	ctrl   *beep.Ctrl
	graph  Graph
	queued bool // ctrl is currently in the output mixer
	ended  bool
	cancel context.CancelFunc

	vol atomic.Uint64 // math.Float64bits of the linear gain

	events  chan Event
	endedCh chan uint64
	done    chan struct{}
	once    sync.Once
}

// NewBeepElement creates an element that renders at sr into out.
func NewBeepElement(out Output, sr beep.SampleRate, client *http.Client) *BeepElement {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	e := &BeepElement{
		out:     out,
		sr:      sr,
		client:  client,
		events:  make(chan Event, 64),
		endedCh: make(chan uint64, 4),
		done:    make(chan struct{}),
	}
	e.vol.Store(math.Float64bits(1))
	go e.loop()
	return e
}

func (e *BeepElement) Load(src string) uint64 {
	e.mu.Lock()
	e.loadID++
	id := e.loadID
	e.unloadLocked()
	e.src = src
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	go e.fetch(ctx, id, src)
	return id
}

func (e *BeepElement) fetch(ctx context.Context, id uint64, src string) {
	stream, format, err := open(ctx, e.client, src)

	e.mu.Lock()
	if id != e.loadID || e.isClosed() {
		e.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
		return
	}
	if err != nil {
		e.mu.Unlock()
		e.emit(Event{Type: EventError, LoadID: id, Err: err})
		return
	}

	e.stream = stream
	e.format = format
	var s beep.Streamer = stream
	if format.SampleRate != e.sr {
		s = beep.Resample(4, format.SampleRate, e.sr, s)
	}
	s = &gainStreamer{s: s, vol: &e.vol}
	e.stage = &graphStage{in: s, out: s}
	if e.graph != nil {
		e.stage.out = e.graph.Process(s)
	}
	e.ctrl = &beep.Ctrl{Streamer: e.stage, Paused: true}
	dur := format.SampleRate.D(stream.Len())
	e.mu.Unlock()

	e.emit(Event{Type: EventReady, LoadID: id, Duration: dur})
}

// unloadLocked drops the current source. e.mu must be held.
func (e *BeepElement) unloadLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.queued {
		e.out.Clear()
		e.queued = false
	}
	if e.stream != nil {
		e.out.Lock()
		e.stream.Close()
		e.out.Unlock()
	}
	e.stream = nil
	e.stage = nil
	e.ctrl = nil
	e.ended = false
}

func (e *BeepElement) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

func (e *BeepElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl == nil {
		return ErrNoSource
	}

	e.out.Lock()
	if e.ended {
		if e.stream.Position() >= e.stream.Len() {
			if err := e.stream.Seek(0); err != nil {
				e.out.Unlock()
				return err
			}
		}
		e.ended = false
	}
	e.ctrl.Paused = false
	e.out.Unlock()

	if !e.queued {
		id := e.loadID
		e.out.Play(beep.Seq(e.ctrl, beep.Callback(func() {
			select {
			case e.endedCh <- id:
			default:
			}
		})))
		e.queued = true
	}
	return nil
}

func (e *BeepElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl == nil {
		return
	}
	e.out.Lock()
	e.ctrl.Paused = true
	e.out.Unlock()
}

func (e *BeepElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pausedLocked()
}

func (e *BeepElement) pausedLocked() bool {
	if e.ctrl == nil || !e.queued {
		return true
	}
	e.out.Lock()
	defer e.out.Unlock()
	return e.ctrl.Paused
}

func (e *BeepElement) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *BeepElement) positionLocked() time.Duration {
	if e.stream == nil {
		return 0
	}
	e.out.Lock()
	defer e.out.Unlock()
	return e.format.SampleRate.D(e.stream.Position())
}

func (e *BeepElement) SetCurrentTime(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return
	}
	d = clampDuration(d, 0, e.format.SampleRate.D(e.stream.Len()))
	n := e.format.SampleRate.N(d)
	e.out.Lock()
	defer e.out.Unlock()
	if n > e.stream.Len() {
		n = e.stream.Len()
	}
	_ = e.stream.Seek(n)
}

func (e *BeepElement) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	return e.format.SampleRate.D(e.stream.Len())
}

func (e *BeepElement) SetVolume(v float64) {
	e.vol.Store(math.Float64bits(max(0, min(1, v))))
}

func (e *BeepElement) Volume() float64 {
	return math.Float64frombits(e.vol.Load())
}

func (e *BeepElement) BindGraph(g Graph) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g != nil && e.graph != nil && e.graph != g {
		return ErrAlreadyBound
	}
	e.graph = g
	if e.stage != nil {
		e.out.Lock()
		if g == nil {
			e.stage.out = e.stage.in
		} else {
			e.stage.out = g.Process(e.stage.in)
		}
		e.out.Unlock()
	}
	return nil
}

func (e *BeepElement) Events() <-chan Event { return e.events }

// Close stops playback and releases the current source.
func (e *BeepElement) Close() error {
	e.once.Do(func() {
		close(e.done)
		e.mu.Lock()
		e.unloadLocked()
		e.mu.Unlock()
	})
	return nil
}

func (e *BeepElement) isClosed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *BeepElement) emit(ev Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// loop emits periodic time updates and converts the output's end-of-stream
// callback into an Ended event.
func (e *BeepElement) loop() {
	ticker := time.NewTicker(timeUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return

		case id := <-e.endedCh:
			e.mu.Lock()
			if id != e.loadID || e.ctrl == nil {
				e.mu.Unlock()
				continue
			}
			e.ended = true
			e.queued = false
			e.out.Lock()
			e.ctrl.Paused = true
			e.out.Unlock()
			pos := e.positionLocked()
			e.mu.Unlock()
			e.emit(Event{Type: EventEnded, LoadID: id, Position: pos})

		case <-ticker.C:
			e.mu.Lock()
			if e.ctrl == nil || e.pausedLocked() {
				e.mu.Unlock()
				continue
			}
			ev := Event{Type: EventTimeUpdate, LoadID: e.loadID, Position: e.positionLocked()}
			e.mu.Unlock()
			// time updates are droppable
			select {
			case e.events <- ev:
			default:
			}
		}
	}
}

// graphStage forwards to out, which is either in or a graph wrapping in.
type graphStage struct {
	in  beep.Streamer
	out beep.Streamer
}

func (g *graphStage) Stream(samples [][2]float64) (int, bool) { return g.out.Stream(samples) }
func (g *graphStage) Err() error                               { return g.out.Err() }

// gainStreamer applies linear gain.
type gainStreamer struct {
	s   beep.Streamer
	vol *atomic.Uint64
}

func (v *gainStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := v.s.Stream(samples)
	gain := math.Float64frombits(v.vol.Load())
	if gain != 1 {
		for i := range n {
			samples[i][0] *= gain
			samples[i][1] *= gain
		}
	}
	return n, ok
}

func (v *gainStreamer) Err() error { return v.s.Err() }
