package cmd

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"songforge/core/visualizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackFromName(t *testing.T) {
	tests := []struct {
		src, title, artist string
	}{
		{"music/Boards of Canada - Roygbiv.mp3", "Roygbiv", "Boards of Canada"},
		{"/tmp/demo.wav", "demo", ""},
		{"http://host/media/songs/1/abc.mp3?sig=1", "abc", ""},
		{"a - b - c.mp3", "b - c", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tr := trackFromName(tt.src)
			assert.Equal(t, tt.title, tr.Title)
			assert.Equal(t, tt.artist, tr.ArtistStyle)
			assert.Equal(t, tt.src, tr.ID)
			assert.Equal(t, tt.src, tr.SongURL)
		})
	}
}

func TestAdhocTracksExpandsGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"x - one.mp3", "x - two.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("not really audio"), 0o644))
	}

	tracks := adhocTracks([]string{filepath.Join(dir, "*.mp3"), "https://example.com/remote.mp3"})
	require.Len(t, tracks, 3)
	assert.Equal(t, "one", tracks[0].Title)
	assert.Equal(t, "x", tracks[0].ArtistStyle)
	assert.Equal(t, "two", tracks[1].Title)
	assert.Equal(t, "remote", tracks[2].Title)
}

func TestFitCover(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(1, 1, color.RGBA{B: 255, A: 255})

	out := fitCover(src)
	require.Equal(t, visualizer.CoverSize, out.Bounds().Dx())
	require.Equal(t, visualizer.CoverSize, out.Bounds().Dy())

	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	_, _, b, _ := out.At(visualizer.CoverSize-1, visualizer.CoverSize-1).RGBA()
	assert.Equal(t, uint32(0xffff), b)

	exact := image.NewRGBA(image.Rect(0, 0, visualizer.CoverSize, visualizer.CoverSize))
	assert.Same(t, exact, fitCover(exact))
}
