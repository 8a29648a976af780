// Package tui implements the bubbletea terminal player: a playlist, a
// player bar and an expanded view with the frequency bars drawn around the
// cover box.
package tui

import (
	"context"
	"errors"
	"time"

	"songforge/core/audio"
	"songforge/core/playback"
	"songforge/core/visualizer"
	"songforge/logger"
	"songforge/model"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	// frameInterval is the display refresh of the visualizer.
	frameInterval = time.Second / 30
	// uiInterval drives title scrolling.
	uiInterval = 200 * time.Millisecond
	volumeStep = 5
)

var errNoSecondary = errors.New("this track has no second version")

// Loader fetches the track list.
type Loader func(ctx context.Context) ([]*model.Track, error)

type tickMsg time.Time

// frameMsg is one scheduled visualizer frame; a stale token draws nothing.
type frameMsg struct{ token uint64 }

type audioEventMsg audio.Event

type tracksMsg struct {
	tracks []*model.Track
	err    error
}

// Model is the bubbletea model of the player.
type Model struct {
	ctrl   *playback.Controller
	queue  *playback.ListQueue
	events <-chan audio.Event
	load   Loader

	vis    *visualizer.Visualizer
	stage  []*TermCanvas
	layout []visualizer.BarGroup

	// last (graph, playing, expanded) the visualizer was updated with
	graphGen uint64
	animate  bool

	cursor   int
	scroll   int
	visible  int
	titleOff int
	err      error
	quitting bool
	width    int
	height   int
}

// NewModel wires the UI to a controller whose queue is q. events is the
// element's event stream; load may be nil.
func NewModel(ctrl *playback.Controller, q *playback.ListQueue, events <-chan audio.Event, load Loader) (Model, error) {
	layout := visualizer.DefaultLayout()
	stage := newStage(layout)
	canvases := make([]visualizer.Canvas, len(stage))
	for i, c := range stage {
		canvases[i] = c
	}
	r, err := visualizer.NewRenderer(layout, canvases)
	if err != nil {
		return Model{}, err
	}
	ctrl.SetQueue(q)
	return Model{
		ctrl:    ctrl,
		queue:   q,
		events:  events,
		load:    load,
		vis:     visualizer.New(r),
		stage:   stage,
		layout:  layout,
		visible: 8,
	}, nil
}

// Init starts the UI tick and the audio event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitEvent(m.events), tea.WindowSize())
}

func tickCmd() tea.Cmd {
	return tea.Tick(uiInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func frameCmd(token uint64) tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return frameMsg{token: token}
	})
}

func waitEvent(ch <-chan audio.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return audioEventMsg(ev)
	}
}

func (m Model) reload() tea.Cmd {
	if m.load == nil {
		return nil
	}
	load := m.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		tracks, err := load(ctx)
		return tracksMsg{tracks: tracks, err: err}
	}
}

// Update handles keys, audio events, frames and ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		if m.quitting {
			m.vis.Stop()
			return m, tea.Quit
		}
		return m, tea.Batch(cmd, m.syncVisualizer())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.visible = max(3, min(12, msg.Height-12))
		if m.ctrl.Snapshot().Expanded {
			m.visible = 3
		}

	case audioEventMsg:
		ev := audio.Event(msg)
		if m.ctrl.HandleEvent(ev) && ev.Type == audio.EventError {
			m.err = ev.Err
		}
		return m, tea.Batch(waitEvent(m.events), m.syncVisualizer())

	case frameMsg:
		if tok, ok := m.vis.Tick(msg.token); ok {
			return m, frameCmd(tok)
		}

	case tracksMsg:
		if msg.err != nil {
			m.err = msg.err
			logger.Warn("[TUI] 刷新曲库失败", logger.ErrorField(msg.err))
			return m, nil
		}
		m.setTracks(msg.tracks)
		return m, m.syncVisualizer()

	case tickMsg:
		m.titleOff++
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
	case " ":
		m.ctrl.TogglePlayPause()
	case "enter":
		if t := m.selected(); t != nil {
			m.titleOff = 0
			m.err = nil
			m.ctrl.Play(t)
		}
	case "left":
		m.ctrl.SkipBy(-playback.SkipStep)
	case "right":
		m.ctrl.SkipBy(playback.SkipStep)
	case "+", "=":
		m.ctrl.SetVolume(m.ctrl.Snapshot().Volume + volumeStep)
	case "-":
		m.ctrl.SetVolume(m.ctrl.Snapshot().Volume - volumeStep)
	case "m":
		m.ctrl.ToggleMute()
	case "v":
		if !m.ctrl.SwapVersion() {
			m.err = errNoSecondary
		}
	case "n":
		if m.ctrl.NextTrack() {
			m.followCurrent()
		}
	case "p":
		if m.ctrl.PreviousTrack() {
			m.followCurrent()
		}
	case "e":
		m.ctrl.ToggleExpanded()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
	case "down", "j":
		if m.cursor < m.queue.Len()-1 {
			m.cursor++
			m.adjustScroll()
		}
	case "r":
		return m.reload()
	default:
		if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
			m.ctrl.Seek(float64(key[0]-'0') * 10)
		}
	}
	return nil
}

// syncVisualizer restarts the frame loop whenever the analyser graph, the
// playing flag or the expanded mode changed since the last call.
func (m *Model) syncVisualizer() tea.Cmd {
	snap := m.ctrl.Snapshot()
	gen := m.ctrl.GraphGeneration()
	animate := snap.State == playback.ReadyPlaying && snap.Expanded
	if gen == m.graphGen && animate == m.animate {
		return nil
	}
	m.graphGen, m.animate = gen, animate
	tok, ok := m.vis.Update(m.ctrl.Analyser(), animate)
	if !ok {
		return nil
	}
	return frameCmd(tok)
}

func (m *Model) setTracks(tracks []*model.Track) {
	m.queue.Set(tracks)
	cur := m.ctrl.Snapshot().Track
	if len(tracks) == 0 || (cur != nil && m.queue.Index(cur.ID) < 0) {
		m.ctrl.Clear()
	}
	m.cursor = max(0, min(m.cursor, len(tracks)-1))
	m.adjustScroll()
}

func (m *Model) selected() *model.Track {
	tracks := m.queue.Tracks()
	if m.cursor < 0 || m.cursor >= len(tracks) {
		return nil
	}
	return tracks[m.cursor]
}

// followCurrent moves the cursor onto the current track.
func (m *Model) followCurrent() {
	if t := m.ctrl.Snapshot().Track; t != nil {
		if i := m.queue.Index(t.ID); i >= 0 {
			m.cursor = i
			m.adjustScroll()
		}
	}
	m.titleOff = 0
}

// adjustScroll keeps the cursor inside the visible window.
func (m *Model) adjustScroll() {
	if m.cursor < m.scroll {
		m.scroll = m.cursor
	}
	if m.cursor >= m.scroll+m.visible {
		m.scroll = m.cursor - m.visible + 1
	}
}
