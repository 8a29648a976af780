package visualizer

// Loop schedules display frames. Only the most recently requested token is
// live; Cancel invalidates it, so a frame callback that arrives late can
// never draw.
type Loop struct {
	seq  uint64
	live uint64
}

// Request schedules a frame and returns its token.
func (l *Loop) Request() uint64 {
	l.seq++
	l.live = l.seq
	return l.seq
}

// Cancel drops any outstanding frame.
func (l *Loop) Cancel() { l.live = 0 }

// Take consumes tok, reporting whether it was the live frame.
func (l *Loop) Take(tok uint64) bool {
	if tok == 0 || tok != l.live {
		return false
	}
	l.live = 0
	return true
}

// Pending reports whether a frame is scheduled.
func (l *Loop) Pending() bool { return l.live != 0 }

// Visualizer runs a Renderer off a Loop. It is driven from a single
// goroutine (the UI event loop) and is not safe for concurrent use.
type Visualizer struct {
	renderer *Renderer
	loop     Loop
	src      Source
	playing  bool
	stopped  bool
	frames   int
}

func New(r *Renderer) *Visualizer {
	return &Visualizer{renderer: r}
}

func (v *Visualizer) Renderer() *Renderer { return v.renderer }

// Update is called whenever the analyser or the playing flag changes. It
// cancels the running loop and, when playing with a source, draws a frame
// and schedules the next one. src must be an untyped nil when there is no
// analyser.
func (v *Visualizer) Update(src Source, playing bool) (uint64, bool) {
	v.loop.Cancel()
	v.src, v.playing = src, playing
	if v.stopped || !playing || src == nil {
		return 0, false
	}
	v.draw()
	return v.loop.Request(), true
}

// Tick runs the frame for tok and schedules the next one. Stale tokens are ignored.
func (v *Visualizer) Tick(tok uint64) (uint64, bool) {
	if !v.loop.Take(tok) {
		return 0, false
	}
	if v.stopped || !v.playing || v.src == nil {
		return 0, false
	}
	v.draw()
	return v.loop.Request(), true
}

// Stop tears the loop down; later Update and Tick calls draw nothing.
func (v *Visualizer) Stop() {
	v.stopped = true
	v.loop.Cancel()
	v.src = nil
}

// Frames counts frames drawn.
func (v *Visualizer) Frames() int { return v.frames }

func (v *Visualizer) draw() {
	v.renderer.Frame(v.src)
	v.frames++
}
