// Package playback implements the player state machine: track selection,
// play/pause with a queued play intent, seek, volume and mute, skip,
// primary/secondary version switching and the analyser lifecycle.
package playback

import (
	"math"
	"sync"
	"time"

	"songforge/core/analyser"
	"songforge/core/audio"
	"songforge/core/visualizer"
	"songforge/logger"
	"songforge/model"
)

// SkipStep is the ±skip distance.
const SkipStep = 10 * time.Second

// State 播放状态
type State int

const (
	Idle State = iota
	Loading
	ReadyPaused
	ReadyPlaying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case ReadyPaused:
		return "paused"
	case ReadyPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Version selects which audio rendition of a track is active.
type Version int

const (
	Primary Version = iota
	Secondary
)

func (v Version) String() string {
	if v == Secondary {
		return "secondary"
	}
	return "primary"
}

// Queue supplies the library ordering for next/previous.
type Queue interface {
	Adjacent(id string, delta int) (*model.Track, bool)
}

// Bridge attaches an analyser to the element. Attach must tear down any
// previous graph first.
type Bridge interface {
	Attach(el audio.Element) (*analyser.AnalyserNode, error)
	Detach()
}

// Snapshot is an immutable view of the session for rendering.
type Snapshot struct {
	State       State
	Track       *model.Track
	Version     Version
	Position    time.Duration
	Duration    time.Duration
	Volume      int
	Muted       bool
	Expanded    bool
	PendingPlay bool
	CanSwap     bool
	HasNext     bool
	HasPrevious bool
	Err         error
}

// Playing reports whether audio is (or is about to be) playing.
func (s Snapshot) Playing() bool {
	return s.State == ReadyPlaying || (s.State == Loading && s.PendingPlay)
}

// Progress is the position as a percentage of the duration.
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Position) / float64(s.Duration) * 100
}

// Controller owns the audio element and the analyser for the current
// track/version. Volume and mute persist across tracks; position does not.
type Controller struct {
	mu     sync.Mutex
	el     audio.Element
	bridge Bridge
	queue  Queue

	state       State
	track       *model.Track
	version     Version
	loadID      uint64
	pendingPlay bool
	position    time.Duration
	duration    time.Duration
	volume      int
	muted       bool
	preMute     int
	expanded    bool
	err         error

	analyser *analyser.AnalyserNode
	graphGen uint64
}

// NewController creates an idle controller at full volume. queue may be nil.
func NewController(el audio.Element, bridge Bridge, queue Queue) *Controller {
	c := &Controller{el: el, bridge: bridge, queue: queue, volume: 100}
	el.SetVolume(1)
	return c
}

// SetQueue replaces the library ordering.
func (c *Controller) SetQueue(q Queue) {
	c.mu.Lock()
	c.queue = q
	c.mu.Unlock()
}

// Select makes track current and starts loading its primary version. The
// play intent carries over: a playing session keeps playing on the new track.
func (c *Controller) Select(track *model.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if track == nil {
		c.clearLocked()
		return
	}
	c.selectLocked(track, c.intentLocked())
}

// Play selects track and requests playback. Playing the current track
// toggles play/pause instead.
func (c *Controller) Play(track *model.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if track == nil {
		return
	}
	if c.track != nil && c.track.ID == track.ID {
		c.togglePlayPauseLocked()
		return
	}
	c.selectLocked(track, true)
}

func (c *Controller) selectLocked(track *model.Track, playIntent bool) {
	c.track = track
	c.version = Primary
	c.loadLocked(playIntent)
	logger.Debug("[Player] 选择曲目", logger.String("trackId", track.ID), logger.String("title", track.Title))
}

// loadLocked tears the graph down and mounts the active version.
func (c *Controller) loadLocked(playIntent bool) {
	c.detachLocked()
	c.position = 0
	c.duration = 0
	c.err = nil
	c.state = Loading
	c.pendingPlay = playIntent
	c.loadID = c.el.Load(c.sourceLocked())
}

func (c *Controller) sourceLocked() string {
	if c.version == Secondary && c.track.HasSecondary() {
		return c.track.SecondarySongURL
	}
	return c.track.SongURL
}

func (c *Controller) intentLocked() bool {
	return c.state == ReadyPlaying || (c.state == Loading && c.pendingPlay)
}

// Clear returns to Idle, e.g. when the track list becomes empty.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Controller) clearLocked() {
	c.detachLocked()
	c.el.Pause()
	c.state = Idle
	c.track = nil
	c.version = Primary
	c.position, c.duration = 0, 0
	c.pendingPlay = false
	c.err = nil
	// 旧 load 的事件全部作废
	c.loadID = 0
}

// HandleEvent applies an element event. It reports whether the event
// belonged to the current source; stale events are ignored.
func (c *Controller) HandleEvent(ev audio.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil || ev.LoadID != c.loadID {
		return false
	}

	switch ev.Type {
	case audio.EventReady:
		if c.state != Loading {
			return true
		}
		c.duration = ev.Duration
		c.position = 0
		c.attachLocked()
		c.state = ReadyPaused
		if c.pendingPlay {
			c.startLocked()
		}

	case audio.EventTimeUpdate:
		c.position = clamp(ev.Position, 0, c.duration)

	case audio.EventEnded:
		// 自然结束视为暂停
		if c.state == ReadyPlaying {
			c.state = ReadyPaused
		}
		c.pendingPlay = false
		c.position = c.duration

	case audio.EventError:
		c.err = ev.Err
		c.pendingPlay = false
		// 加载失败后回到暂停，不能停在 Loading 里让界面显示正在播放
		if c.state == Loading {
			c.el.Pause()
			c.state = ReadyPaused
		}
		logger.Warn("[Player] 音频加载失败",
			logger.String("trackId", c.track.ID),
			logger.String("version", c.version.String()),
			logger.ErrorField(ev.Err))
	}
	return true
}

func (c *Controller) attachLocked() {
	an, err := c.bridge.Attach(c.el)
	c.graphGen++
	if err != nil {
		// 可视化只是锦上添花，不影响播放
		logger.Warn("[Player] 频谱分析不可用", logger.ErrorField(err))
		c.analyser = nil
		return
	}
	c.analyser = an
}

func (c *Controller) detachLocked() {
	c.bridge.Detach()
	c.analyser = nil
	c.graphGen++
}

// startLocked starts the element; a rejected start leaves the session paused.
func (c *Controller) startLocked() {
	c.pendingPlay = false
	if err := c.el.Play(); err != nil {
		c.state = ReadyPaused
		c.err = err
		logger.Warn("[Player] 播放被拒绝", logger.ErrorField(err))
		return
	}
	c.err = nil
	c.state = ReadyPlaying
}

// TogglePlayPause flips between paused and playing. While loading it
// flips the queued intent instead.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.togglePlayPauseLocked()
}

func (c *Controller) togglePlayPauseLocked() {
	switch c.state {
	case Loading:
		c.pendingPlay = !c.pendingPlay
	case ReadyPaused:
		c.startLocked()
	case ReadyPlaying:
		c.el.Pause()
		c.state = ReadyPaused
	}
}

// Seek moves to percent of the duration; percent is clamped to [0,100].
func (c *Controller) Seek(percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readyLocked() || c.duration <= 0 {
		return
	}
	if math.IsNaN(percent) {
		return
	}
	percent = max(0, min(100, percent))
	c.seekLocked(time.Duration(percent / 100 * float64(c.duration)))
}

// SkipBy moves by d, clamped to [0, duration].
func (c *Controller) SkipBy(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readyLocked() {
		return
	}
	c.seekLocked(c.el.CurrentTime() + d)
}

func (c *Controller) seekLocked(pos time.Duration) {
	pos = clamp(pos, 0, c.duration)
	c.el.SetCurrentTime(pos)
	c.position = pos
}

func (c *Controller) readyLocked() bool {
	return c.state == ReadyPaused || c.state == ReadyPlaying
}

// SetVolume sets the volume in percent. Setting it while muted unmutes.
func (c *Controller) SetVolume(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = max(0, min(100, percent))
	c.muted = false
	c.el.SetVolume(float64(c.volume) / 100)
}

// ToggleMute silences output, remembering the volume to restore.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted {
		c.muted = false
		c.volume = c.preMute
	} else {
		c.preMute = c.volume
		c.muted = true
		c.volume = 0
	}
	c.el.SetVolume(float64(c.volume) / 100)
}

// SwapVersion switches between primary and secondary audio and reloads at
// the same play intent. It reports false when the track has no secondary.
func (c *Controller) SwapVersion() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil || !c.track.HasSecondary() {
		return false
	}
	intent := c.intentLocked()
	if c.version == Primary {
		c.version = Secondary
	} else {
		c.version = Primary
	}
	c.loadLocked(intent)
	logger.Debug("[Player] 切换版本", logger.String("trackId", c.track.ID), logger.String("version", c.version.String()))
	return true
}

// NextTrack selects the following track; false when there is none.
func (c *Controller) NextTrack() bool { return c.step(1) }

// PreviousTrack selects the preceding track; false when there is none.
func (c *Controller) PreviousTrack() bool { return c.step(-1) }

func (c *Controller) step(delta int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, ok := c.adjacentLocked(delta)
	if !ok {
		return false
	}
	c.selectLocked(next, c.intentLocked())
	return true
}

func (c *Controller) adjacentLocked(delta int) (*model.Track, bool) {
	if c.queue == nil || c.track == nil {
		return nil, false
	}
	return c.queue.Adjacent(c.track.ID, delta)
}

func (c *Controller) ToggleExpanded() {
	c.mu.Lock()
	c.expanded = !c.expanded
	c.mu.Unlock()
}

// Analyser returns the live frequency source, or an untyped nil.
func (c *Controller) Analyser() visualizer.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.analyser == nil {
		return nil
	}
	return c.analyser
}

// GraphGeneration changes whenever the analyser graph is torn down or
// rebuilt; frame loops keyed to an older generation must stop.
func (c *Controller) GraphGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graphGen
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, hasNext := c.adjacentLocked(1)
	_, hasPrev := c.adjacentLocked(-1)
	return Snapshot{
		State:       c.state,
		Track:       c.track,
		Version:     c.version,
		Position:    c.position,
		Duration:    c.duration,
		Volume:      c.volume,
		Muted:       c.muted,
		Expanded:    c.expanded,
		PendingPlay: c.pendingPlay,
		CanSwap:     c.track.HasSecondary(),
		HasNext:     hasNext,
		HasPrevious: hasPrev,
		Err:         c.err,
	}
}

// Close detaches the analyser and releases the element.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
	return c.el.Close()
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
