package tui

import (
	"fmt"
	"strings"
	"time"

	"songforge/core/playback"
	"songforge/core/visualizer"

	"github.com/charmbracelet/lipgloss"
)

// panelWidth is the usable inner width of the collapsed player.
const panelWidth = 60

// View renders the whole frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.ctrl.Snapshot()

	sections := []string{m.renderTitle(), m.renderTrackInfo(snap), m.renderTimeStatus(snap)}
	if snap.Expanded {
		sections = append(sections, "", m.renderStage(snap))
	}
	sections = append(sections,
		m.renderSeekBar(snap),
		"",
		m.renderVolume(snap),
		"",
		m.renderPlaylistHeader(),
		m.renderPlaylist(snap),
		"",
		m.renderHelp(snap),
	)

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("ERR: %s", m.err)))
	} else if snap.Err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("ERR: %s", snap.Err)))
	}
	return frameStyle.Render(strings.Join(sections, "\n"))
}

func (m Model) pw() int {
	if m.ctrl.Snapshot().Expanded {
		return coverCols + 2*sideCols
	}
	return panelWidth
}

func (m Model) renderTitle() string {
	return titleStyle.Render("S O N G F O R G E")
}

func (m Model) renderTrackInfo(snap playback.Snapshot) string {
	if snap.Track == nil {
		return dimStyle.Render("♫ No track selected")
	}
	name := snap.Track.Title
	maxW := m.pw() - 2
	runes := []rune(name)
	if len(runes) > maxW {
		// 长标题循环滚动
		padded := append(runes, []rune("  ♫  ")...)
		off := m.titleOff % len(padded)
		display := make([]rune, maxW)
		for i := range maxW {
			display[i] = padded[(off+i)%len(padded)]
		}
		name = string(display)
	}
	line := trackStyle.Render("♫ " + name)
	if snap.Track.ArtistStyle != "" {
		line += "\n" + artistStyle.Render("  "+snap.Track.ArtistStyle)
	}
	return line
}

func formatClock(d time.Duration) string {
	d = max(0, d)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func (m Model) renderTimeStatus(snap playback.Snapshot) string {
	left := timeStyle.Render(formatClock(snap.Position) + " / " + formatClock(snap.Duration))

	var status string
	switch snap.State {
	case playback.Loading:
		if snap.PendingPlay {
			status = statusStyle.Render("… Loading ▶")
		} else {
			status = dimStyle.Render("… Loading")
		}
	case playback.ReadyPlaying:
		status = statusStyle.Render("▶ Playing")
	case playback.ReadyPaused:
		status = statusStyle.Render("‖ Paused")
	default:
		status = dimStyle.Render("■ Stopped")
	}
	if snap.CanSwap {
		tag := "[A]"
		if snap.Version == playback.Secondary {
			tag = "[B]"
		}
		status = activeToggle.Render(tag) + " " + status
	}

	gap := max(1, m.pw()-lipgloss.Width(left)-lipgloss.Width(status))
	return left + strings.Repeat(" ", gap) + status
}

// renderStage composes the four bar strips around the cover box.
func (m Model) renderStage(snap playback.Snapshot) string {
	var top, bottom, left, right []string
	for i, g := range m.layout {
		lines := m.stage[i].Lines()
		switch g.Edge {
		case visualizer.Top:
			top = lines
		case visualizer.Bottom:
			bottom = lines
		case visualizer.Left:
			left = lines
		case visualizer.Right:
			right = lines
		}
	}

	label := "No cover"
	if snap.Track != nil {
		label = snap.Track.Title
		if snap.Track.ArtistStyle != "" {
			label += "\n\n" + snap.Track.ArtistStyle
		}
	}
	// 边框占两行两列
	cover := coverStyle.Width(coverCols - 2).Height(coverRows - 2).Render(label)
	coverLines := strings.Split(cover, "\n")

	pad := strings.Repeat(" ", sideCols)
	rows := make([]string, 0, 2*stripRows+coverRows)
	for _, l := range top {
		rows = append(rows, pad+l)
	}
	for i := 0; i < coverRows; i++ {
		c := ""
		if i < len(coverLines) {
			c = coverLines[i]
		}
		rows = append(rows, at(left, i)+c+at(right, i))
	}
	for _, l := range bottom {
		rows = append(rows, pad+l)
	}
	return strings.Join(rows, "\n")
}

func at(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return strings.Repeat(" ", sideCols)
}

func (m Model) renderSeekBar(snap playback.Snapshot) string {
	progress := max(0, min(1, snap.Progress()/100))
	pw := m.pw()
	filled := int(progress * float64(pw-1))
	return seekFillStyle.Render(strings.Repeat("━", filled)) +
		seekFillStyle.Render("●") +
		seekDimStyle.Render(strings.Repeat("━", max(0, pw-filled-1)))
}

func (m Model) renderVolume(snap playback.Snapshot) string {
	const barW = 22
	filled := snap.Volume * barW / 100
	bar := volBarStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", barW-filled))
	suffix := dimStyle.Render(fmt.Sprintf(" %3d%%", snap.Volume))
	if snap.Muted {
		suffix = activeToggle.Render(" MUTE")
	}
	return labelStyle.Render("VOL ") + bar + suffix
}

func (m Model) renderPlaylistHeader() string {
	return dimStyle.Render(fmt.Sprintf("── Library (%d) ──", m.queue.Len()))
}

func (m Model) renderPlaylist(snap playback.Snapshot) string {
	tracks := m.queue.Tracks()
	if len(tracks) == 0 {
		return dimStyle.Render("  No tracks yet")
	}

	visible := min(m.visible, len(tracks))
	scroll := max(0, min(m.scroll, len(tracks)-visible))

	lines := make([]string, 0, visible)
	for i := scroll; i < scroll+visible; i++ {
		t := tracks[i]
		prefix := "  "
		style := playlistItemStyle
		if snap.Track != nil && snap.Track.ID == t.ID {
			prefix = "▶ "
			style = playlistActiveStyle
		}
		if i == m.cursor {
			style = playlistSelectedStyle
		}

		name := t.Title
		if t.HasSecondary() {
			name += " ⇄"
		}
		maxW := m.pw() - 6
		if r := []rune(name); len(r) > maxW {
			name = string(r[:maxW-1]) + "…"
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s%d. %s", prefix, i+1, name)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp(snap playback.Snapshot) string {
	next, prev := "[n]Next", "[p]Prev"
	if !snap.HasNext {
		next = "[n]—"
	}
	if !snap.HasPrevious {
		prev = "[p]—"
	}
	help := fmt.Sprintf("[Spc]Play [⏎]Select [←→]±10s [0-9]Seek [+-]Vol [m]Mute [v]Ver %s %s [e]Expand [q]Quit", next, prev)
	return helpStyle.Width(m.pw()).Render(help)
}
