package tui

import "github.com/charmbracelet/lipgloss"

// Palette built from the standard ANSI colors so it follows the terminal theme.
var (
	colorBorder  = lipgloss.ANSIColor(8)  // bright black
	colorTitle   = lipgloss.ANSIColor(13) // bright magenta
	colorText    = lipgloss.ANSIColor(7)  // white
	colorDim     = lipgloss.ANSIColor(8)  // bright black
	colorAccent  = lipgloss.ANSIColor(14) // bright cyan
	colorPlaying = lipgloss.ANSIColor(10) // bright green
	colorSeekBar = lipgloss.ANSIColor(13) // bright magenta
	colorVolume  = lipgloss.ANSIColor(5)  // magenta
	colorError   = lipgloss.ANSIColor(9)  // bright red
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorTitle).
			Bold(true)

	trackStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	artistStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Italic(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorText)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorPlaying).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	activeToggle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	playlistActiveStyle = lipgloss.NewStyle().
				Foreground(colorPlaying).
				Bold(true)

	playlistItemStyle = lipgloss.NewStyle().
				Foreground(colorText)

	playlistSelectedStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	coverStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorTitle).
			Align(lipgloss.Center, lipgloss.Center)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	seekFillStyle = lipgloss.NewStyle().Foreground(colorSeekBar)
	seekDimStyle  = lipgloss.NewStyle().Foreground(colorDim)
	volBarStyle   = lipgloss.NewStyle().Foreground(colorVolume)
)
