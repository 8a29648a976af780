package tui

import (
	"testing"
	"time"

	"songforge/core/analyser"
	"songforge/core/audio"
	"songforge/core/playback"
	"songforge/core/visualizer"
	"songforge/model"

	tea "github.com/charmbracelet/bubbletea"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	loads    []string
	nextID   uint64
	playing  bool
	position time.Duration
	duration time.Duration
	volume   float64
}

func (e *fakeElement) Load(src string) uint64 {
	e.loads = append(e.loads, src)
	e.nextID++
	e.playing = false
	e.position, e.duration = 0, 0
	return e.nextID
}
func (e *fakeElement) Src() string                { return e.loads[len(e.loads)-1] }
func (e *fakeElement) Play() error                { e.playing = true; return nil }
func (e *fakeElement) Pause()                     { e.playing = false }
func (e *fakeElement) Paused() bool               { return !e.playing }
func (e *fakeElement) CurrentTime() time.Duration { return e.position }
func (e *fakeElement) SetCurrentTime(d time.Duration) {
	e.position = max(0, min(d, e.duration))
}
func (e *fakeElement) Duration() time.Duration     { return e.duration }
func (e *fakeElement) SetVolume(v float64)         { e.volume = v }
func (e *fakeElement) Volume() float64             { return e.volume }
func (e *fakeElement) BindGraph(audio.Graph) error { return nil }
func (e *fakeElement) Events() <-chan audio.Event  { return nil }
func (e *fakeElement) Close() error                { return nil }

var (
	alpha = &model.Track{ID: "a", Title: "Alpha", ArtistStyle: "dream pop", SongURL: "a1.mp3", SecondarySongURL: "a2.mp3"}
	beta  = &model.Track{ID: "b", Title: "Beta", ArtistStyle: "techno", SongURL: "b1.mp3"}
	gamma = &model.Track{ID: "c", Title: "Gamma", SongURL: "c1.mp3"}
)

func newTestModel(t *testing.T) (Model, *fakeElement) {
	t.Helper()
	el := &fakeElement{}
	q := playback.NewListQueue([]*model.Track{alpha, beta, gamma})
	ctrl := playback.NewController(el, analyser.NewBridge(), q)
	m, err := NewModel(ctrl, q, nil, nil)
	require.NoError(t, err)
	return m, el
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m, cmd
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func ready(m Model, el *fakeElement, d time.Duration) (Model, tea.Cmd) {
	el.duration = d
	return send(m, audioEventMsg{Type: audio.EventReady, LoadID: el.nextID, Duration: d})
}

// frameTokens runs cmd and collects the frame tokens it schedules.
func frameTokens(cmd tea.Cmd) []uint64 {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []uint64
		for _, c := range msg {
			out = append(out, frameTokens(c)...)
		}
		return out
	case frameMsg:
		return []uint64{msg.token}
	}
	return nil
}

func TestEnterPlaysSelectedTrack(t *testing.T) {
	m, el := newTestModel(t)

	m, _ = press(m, "down", "enter")
	require.Equal(t, []string{"b1.mp3"}, el.loads)
	snap := m.ctrl.Snapshot()
	assert.Equal(t, playback.Loading, snap.State)
	assert.True(t, snap.PendingPlay)

	m, _ = ready(m, el, 3*time.Minute)
	assert.Equal(t, playback.ReadyPlaying, m.ctrl.Snapshot().State)
	assert.True(t, el.playing)

	// 再次回车当前曲目只切换播放/暂停
	m, _ = press(m, "enter")
	assert.Equal(t, playback.ReadyPaused, m.ctrl.Snapshot().State)
	assert.Len(t, el.loads, 1)

	m, _ = press(m, " ")
	assert.Equal(t, playback.ReadyPlaying, m.ctrl.Snapshot().State)
}

func TestSeekAndSkipKeys(t *testing.T) {
	m, el := newTestModel(t)
	m, _ = press(m, "enter")
	m, _ = ready(m, el, 180*time.Second)

	m, _ = press(m, "5")
	assert.Equal(t, 90*time.Second, m.ctrl.Snapshot().Position)

	m, _ = press(m, "right")
	assert.Equal(t, 100*time.Second, m.ctrl.Snapshot().Position)

	m, _ = press(m, "9", "right", "right")
	assert.Equal(t, 180*time.Second, m.ctrl.Snapshot().Position)

	m, _ = press(m, "0", "left")
	assert.Equal(t, time.Duration(0), m.ctrl.Snapshot().Position)
}

func TestVolumeAndMuteKeys(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "-", "-")
	assert.Equal(t, 90, m.ctrl.Snapshot().Volume)

	m, _ = press(m, "m")
	snap := m.ctrl.Snapshot()
	assert.True(t, snap.Muted)
	assert.Equal(t, 0, snap.Volume)
	assert.Contains(t, m.View(), "MUTE")

	m, _ = press(m, "m")
	assert.Equal(t, 90, m.ctrl.Snapshot().Volume)

	m, _ = press(m, "+", "+", "+")
	assert.Equal(t, 100, m.ctrl.Snapshot().Volume)
}

func TestSwapKey(t *testing.T) {
	m, el := newTestModel(t)

	m, _ = press(m, "down", "enter", "v")
	assert.ErrorIs(t, m.err, errNoSecondary)
	assert.Contains(t, m.View(), errNoSecondary.Error())

	m, _ = press(m, "up", "enter", "v")
	assert.Equal(t, []string{"b1.mp3", "a1.mp3", "a2.mp3"}, el.loads)
	assert.Equal(t, playback.Secondary, m.ctrl.Snapshot().Version)
}

func TestNextPreviousFollowCursor(t *testing.T) {
	m, el := newTestModel(t)

	m, _ = press(m, "n")
	assert.Empty(t, el.loads, "nothing selected yet")

	m, _ = press(m, "enter", "n", "n")
	assert.Equal(t, gamma, m.ctrl.Snapshot().Track)
	assert.Equal(t, 2, m.cursor)
	assert.False(t, m.ctrl.Snapshot().HasNext)

	m, _ = press(m, "n")
	assert.Equal(t, gamma, m.ctrl.Snapshot().Track)

	m, _ = press(m, "p")
	assert.Equal(t, beta, m.ctrl.Snapshot().Track)
	assert.Equal(t, 1, m.cursor)
}

func TestFrameLoopFollowsGraph(t *testing.T) {
	m, el := newTestModel(t)
	m, _ = press(m, "enter")
	m, cmd := ready(m, el, time.Minute)
	assert.Empty(t, frameTokens(cmd), "collapsed view does not animate")

	m, cmd = press(m, "e")
	toks := frameTokens(cmd)
	require.Len(t, toks, 1)
	assert.Equal(t, 1, m.vis.Frames())

	m, cmd = send(m, frameMsg{token: toks[0]})
	next := frameTokens(cmd)
	require.Len(t, next, 1)
	assert.Equal(t, 2, m.vis.Frames())

	// 过期的帧不再绘制
	m, cmd = send(m, frameMsg{token: toks[0]})
	assert.Nil(t, cmd)
	assert.Equal(t, 2, m.vis.Frames())

	// 切换版本会拆掉分析图，旧循环随之失效
	m, _ = press(m, "v")
	m, cmd = send(m, frameMsg{token: next[0]})
	assert.Nil(t, cmd)
	assert.Equal(t, 2, m.vis.Frames())

	m, cmd = ready(m, el, time.Minute)
	require.Len(t, frameTokens(cmd), 1)
	assert.Equal(t, 3, m.vis.Frames())

	m, cmd = press(m, " ")
	assert.Empty(t, frameTokens(cmd))
	assert.Equal(t, 3, m.vis.Frames())
}

func TestTracksMessage(t *testing.T) {
	m, el := newTestModel(t)
	m, _ = press(m, "down", "down", "enter")
	m, _ = ready(m, el, time.Minute)

	m, _ = send(m, tracksMsg{tracks: []*model.Track{alpha, gamma}})
	assert.Equal(t, gamma, m.ctrl.Snapshot().Track)
	assert.Equal(t, 1, m.cursor)

	m, _ = send(m, tracksMsg{tracks: []*model.Track{alpha}})
	assert.Equal(t, playback.Idle, m.ctrl.Snapshot().State)

	m, _ = send(m, tracksMsg{})
	assert.Equal(t, 0, m.queue.Len())
	assert.Contains(t, m.View(), "No tracks yet")
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestExpandedViewShowsCover(t *testing.T) {
	m, el := newTestModel(t)
	m, _ = press(m, "enter", "e")
	m, _ = ready(m, el, time.Minute)

	view := m.View()
	assert.Contains(t, view, "Alpha")
	assert.Contains(t, view, "dream pop")
	assert.Contains(t, view, "[A]")
}

func TestTermCanvasProjection(t *testing.T) {
	p := visualizer.Paint{Base: colorful.Hsl(200, 0.8, 0.4), Tip: colorful.Hsl(200, 1, 0.7)}

	c := NewTermCanvas(256, 64, 64, 4)
	c.FillBar(visualizer.Rect{X: 0, Y: 0, W: 3, H: 32}, visualizer.Bottom, p)
	assert.True(t, c.Lit(0, 0))
	assert.True(t, c.Lit(0, 1))
	assert.False(t, c.Lit(0, 2))
	assert.False(t, c.Lit(1, 0))
	assert.Contains(t, c.Lines()[0], "█")

	// 接近静音的条不点亮任何格子
	c.Clear()
	c.FillBar(visualizer.Rect{X: 4, Y: 0, W: 3, H: 2}, visualizer.Bottom, p)
	for row := 0; row < 4; row++ {
		assert.False(t, c.Lit(1, row))
	}
	assert.NotContains(t, c.Lines()[0], "█")

	side := NewTermCanvas(64, 256, 12, 16)
	side.FillBar(visualizer.Rect{X: 32, Y: 0, W: 32, H: 7}, visualizer.Left, p)
	assert.True(t, side.Lit(6, 0))
	assert.True(t, side.Lit(11, 0))
	assert.False(t, side.Lit(5, 0))
	assert.False(t, side.Lit(6, 1))
}

func TestGradientRunsFromCoverToTip(t *testing.T) {
	r := visualizer.Rect{X: 0, Y: 0, W: 10, H: 100}
	assert.InDelta(t, 0.0, gradientAt(visualizer.Bottom, 5, 0, r), 1e-9)
	assert.InDelta(t, 1.0, gradientAt(visualizer.Bottom, 5, 100, r), 1e-9)
	assert.InDelta(t, 1.0, gradientAt(visualizer.Top, 5, 0, r), 1e-9)

	h := visualizer.Rect{X: 0, Y: 0, W: 100, H: 10}
	assert.InDelta(t, 1.0, gradientAt(visualizer.Left, 0, 5, h), 1e-9)
	assert.InDelta(t, 0.25, gradientAt(visualizer.Right, 25, 5, h), 1e-9)
}
