package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "k", TextModel: "text", ImageModel: "img"})
}

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":` + quote(content) + `}}]}`))
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGeneratePromptTruncates(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(w, "  "+strings.Repeat("a", 1500)+"  ")
	})

	out, err := c.GeneratePrompt(context.Background(), "Radiohead", "rainy night", "walking home alone")
	require.NoError(t, err)
	assert.Len(t, out, MaxPromptLength)

	assert.Equal(t, "text", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Artist Style: Radiohead")
	assert.Contains(t, got.Messages[1].Content, "[LYRICS]walking home alone[/LYRICS]")
}

func TestGeneratePromptWithoutLyrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotContains(t, req.Messages[1].Content, "[LYRICS]")
		chatReply(w, "dreamy shoegaze")
	})
	out, err := c.GeneratePrompt(context.Background(), "Slowdive", "summer haze", "")
	require.NoError(t, err)
	assert.Equal(t, "dreamy shoegaze", out)
}

func TestGenerateLyrics(t *testing.T) {
	lyrics := "[Verse 1]\na\n[Chorus]\nb\n[Verse 2]\nc\n[Bridge]\nd\n[Chorus]\nb"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(w, "\n"+lyrics+"\n")
	})
	out, err := c.GenerateLyrics(context.Background(), "Bowie", "space")
	require.NoError(t, err)
	assert.Equal(t, lyrics, out)
	for _, s := range LyricSections {
		assert.Contains(t, out, s)
	}
}

func TestErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	})
	_, err := c.GenerateLyrics(context.Background(), "Bowie", "space")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = c.GeneratePrompt(context.Background(), "", "space", "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	empty := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err = empty.GenerateLyrics(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrUpstream)

	c.Reconfigure(Config{BaseURL: "http://unused"})
	_, err = c.GenerateLyrics(context.Background(), "Bowie", "space")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateCoverArt(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		var req imageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b64_json", req.ResponseFormat)
		assert.Equal(t, "img", req.Model)
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(png) + `"}]}`))
	})

	img, err := c.GenerateCoverArt(context.Background(), "a cover")
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/png", img.MimeType)
}

func TestCoverArtPrompt(t *testing.T) {
	short := CoverArtPrompt("Neon Rain", "synthwave", "city lights", "")
	assert.Contains(t, short, `"Neon Rain"`)
	assert.Contains(t, short, "style of the artist general")

	long := CoverArtPrompt("A Title That Is Way Too Long", "synthwave", "city lights", "Kavinsky")
	assert.Contains(t, long, `"synthwave"`)
	assert.NotContains(t, long, "Way Too Long")
	assert.Contains(t, long, "Kavinsky")

	exactly20 := CoverArtPrompt("12345678901234567890", "x", "p", "")
	assert.Contains(t, exactly20, `"12345678901234567890"`)
}
