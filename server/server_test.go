package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"songforge/config"
	"songforge/core/auth"
	"songforge/core/generation"
	"songforge/core/genai"
	"songforge/core/library"
	"songforge/db"
	"songforge/model"
	"songforge/repository"
	"songforge/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	lyricsErr error
	prompts   []string
}

func (f *fakeGenerator) GeneratePrompt(_ context.Context, artist, vibe, lyrics string) (string, error) {
	if strings.TrimSpace(artist) == "" {
		return "", genai.ErrEmptyInput
	}
	return "dreamy " + vibe + " in the style of " + artist, nil
}

func (f *fakeGenerator) GenerateLyrics(context.Context, string, string) (string, error) {
	if f.lyricsErr != nil {
		return "", f.lyricsErr
	}
	return "[Verse]\nla la la", nil
}

func (f *fakeGenerator) GenerateCoverArt(_ context.Context, prompt string) (*genai.Image, error) {
	f.prompts = append(f.prompts, prompt)
	return &genai.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}, nil
}

type testEnv struct {
	router http.Handler
	store  *storage.MemoryStore
	gen    *fakeGenerator
	jobs   *generation.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	store := storage.NewMemoryStore(MediaPrefix)
	settings := repository.NewGormSettingsRepository(gdb)
	lib := library.NewService(
		repository.NewGormTrackRepository(gdb),
		repository.NewGormSongRequestRepository(gdb),
		store, nil)
	gen := &fakeGenerator{}
	// workers are never started; submitted jobs stay queued
	jobs := generation.NewManager(1, nil, lib, nil, nil)

	h := NewAPIHandler(&config.Config{}, Deps{
		Tokens:   tokens,
		Users:    repository.NewGormUserRepository(gdb),
		Settings: settings,
		Library:  lib,
		GenAI:    gen,
		Jobs:     jobs,
	})
	return &testEnv{router: NewRouter(h), store: store, gen: gen, jobs: jobs}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, name string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: name, Password: "secret1", Email: name + "@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) upload(t *testing.T, token string, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".mp3")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tracks/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: "alice", Password: "secret1", Email: "other@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: "bob", Password: "123", Email: "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "alice@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AuthResponse](t, rec)
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "nobody", Password: "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/tracks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tracks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Token abc")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTrackLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	rec := env.upload(t, alice,
		map[string]string{"title": "Night Drive", "artistStyle": "synthwave"},
		map[string][]byte{"songFile": []byte("primary audio"), "secondarySongFile": []byte("secondary audio")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	track := decode[model.Track](t, rec)
	assert.True(t, strings.HasPrefix(track.SongURL, MediaPrefix+"/songs/"))
	assert.NotEmpty(t, track.SecondarySongURL)
	assert.Contains(t, track.CoverArtURL, "picsum.photos")
	assert.Equal(t, 2, env.store.Len())

	// 媒体可以直接取回，并支持 Range
	rec = env.do(t, http.MethodGet, track.SongURL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "primary audio", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, track.SongURL, nil)
	req.Header.Set("Range", "bytes=0-6")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "primary", rr.Body.String())

	rec = env.do(t, http.MethodGet, "/api/tracks", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Track](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/tracks", bob, nil)
	assert.Empty(t, decode[[]model.Track](t, rec))

	rec = env.do(t, http.MethodGet, "/api/public/tracks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Track](t, rec), 1)

	rec = env.do(t, http.MethodPost, "/api/tracks/"+track.ID+"/swap", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	swapped := decode[model.Track](t, rec)
	assert.Equal(t, track.SecondarySongURL, swapped.SongURL)
	assert.Equal(t, track.SongURL, swapped.SecondarySongURL)

	rec = env.do(t, http.MethodDelete, "/api/tracks/"+track.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/tracks/"+track.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.store.Len())

	rec = env.do(t, http.MethodDelete, "/api/tracks/"+track.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, track.SongURL, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	rec := env.upload(t, alice, map[string]string{"title": "No File", "artistStyle": "jazz"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, alice, map[string]string{"title": "No Style"}, map[string][]byte{"songFile": []byte("x")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.store.Len())

	rec = env.do(t, http.MethodPost, "/api/tracks/missing/swap", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSongRequests(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/public/requests", "", map[string]string{"title": "Rainy Day", "artist": "lofi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/public/requests", "", map[string]string{"title": "Only Title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := env.register(t, "alice")
	rec = env.do(t, http.MethodGet, "/api/requests", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reqs := decode[[]model.SongRequest](t, rec)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Rainy Day", reqs[0].Title)
	assert.False(t, reqs[0].SubmittedAt.IsZero())
}

func TestSettingsHideKey(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/settings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.SettingsView](t, rec).HasSunoAPIKey)

	rec = env.do(t, http.MethodPut, "/api/settings", token, map[string]string{"sunoApiKey": " sk-123 "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.SettingsView](t, rec).HasSunoAPIKey)
	assert.NotContains(t, rec.Body.String(), "sk-123")

	rec = env.do(t, http.MethodGet, "/api/settings", token, nil)
	assert.True(t, decode[model.SettingsView](t, rec).HasSunoAPIKey)

	rec = env.do(t, http.MethodPut, "/api/settings", token, map[string]string{"sunoApiKey": ""})
	assert.False(t, decode[model.SettingsView](t, rec).HasSunoAPIKey)
}

func TestCreateEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/create/prompt", token, map[string]string{"artist": "Daft Punk", "vibe": "happy"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["prompt"], "Daft Punk")

	rec = env.do(t, http.MethodPost, "/api/create/prompt", token, map[string]string{"vibe": "happy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.gen.lyricsErr = genai.ErrNotConfigured
	rec = env.do(t, http.MethodPost, "/api/create/lyrics", token, map[string]string{"artist": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/create/cover", token, map[string]string{"title": "Sky", "artistStyle": "ambient"})
	require.Equal(t, http.StatusOK, rec.Code)
	cover := decode[map[string]string](t, rec)
	assert.True(t, strings.HasPrefix(cover["image"], "data:image/png;base64,"))
	assert.Equal(t, "image/png", cover["mimeType"])
	require.Len(t, env.gen.prompts, 1)
	assert.Equal(t, cover["prompt"], env.gen.prompts[0])

	rec = env.do(t, http.MethodPost, "/api/create/cover", token, map[string]string{"title": "Sky"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/create/lyrics", token, "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/create/song", alice, map[string]interface{}{"title": "Song"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/create/song", alice, map[string]interface{}{
		"title": "Song", "prompt": "upbeat", "coverImage": "not-a-data-url",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/create/song", alice, map[string]interface{}{
		"title": "Song", "artistStyle": "pop", "prompt": "upbeat",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decode[model.GenerationJob](t, rec)
	assert.Equal(t, model.JobStatusQueued, job.Status)

	rec = env.do(t, http.MethodGet, "/api/jobs/"+job.ID, alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/jobs/"+job.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/jobs", alice, nil)
	assert.Len(t, decode[[]model.GenerationJob](t, rec), 1)
	rec = env.do(t, http.MethodGet, "/api/jobs", bob, nil)
	assert.Empty(t, decode[[]model.GenerationJob](t, rec))

	rec = env.do(t, http.MethodDelete, "/api/jobs/"+job.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/jobs/"+job.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.JobStatusCancelled, decode[model.GenerationJob](t, rec).Status)

	rec = env.do(t, http.MethodDelete, "/api/jobs/"+job.ID, alice, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSaveSong(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Saved"))
	require.NoError(t, mw.WriteField("prompt", "calm piano"))
	require.NoError(t, mw.WriteField("coverImage", "data:image/png;base64,iVBORw0K"))
	fw, err := mw.CreateFormFile("songFile", "song.mp3")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("generated audio"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/create/save", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	track := decode[model.Track](t, rec)
	assert.Equal(t, "calm piano", track.Prompt)
	assert.True(t, strings.HasPrefix(track.CoverArtURL, MediaPrefix+"/covers/"))
	assert.Equal(t, 2, env.store.Len())
}

func TestStatusMapping(t *testing.T) {
	cases := map[error]int{
		library.ErrInvalidInput:   http.StatusBadRequest,
		library.ErrForbidden:      http.StatusForbidden,
		repository.ErrNotFound:    http.StatusNotFound,
		repository.ErrDuplicate:   http.StatusConflict,
		generation.ErrQueueFull:   http.StatusServiceUnavailable,
		genai.ErrUpstream:         http.StatusBadGateway,
		auth.ErrInvalidToken:      http.StatusUnauthorized,
		auth.ErrWeakPassword:      http.StatusBadRequest,
		io.ErrUnexpectedEOF:       http.StatusInternalServerError,
		generation.ErrJobNotFound: http.StatusNotFound,
		genai.ErrNotConfigured:    http.StatusServiceUnavailable,
	}
	for err, want := range cases {
		got, _ := statusFor(err)
		assert.Equal(t, want, got, err.Error())
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]interface{}](t, rec)["status"])
}
