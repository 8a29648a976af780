package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"songforge/core/generation"
	"songforge/core/genai"
	"songforge/core/hub"
	"songforge/core/library"
	"songforge/logger"

	"github.com/gorilla/mux"
)

type promptBody struct {
	Artist string `json:"artist"`
	Vibe   string `json:"vibe"`
	Lyrics string `json:"lyrics"`
}

type coverBody struct {
	Title       string `json:"title"`
	ArtistStyle string `json:"artistStyle"`
	Prompt      string `json:"prompt"`
	Vibe        string `json:"vibe"`
}

type songBody struct {
	Title        string `json:"title"`
	ArtistStyle  string `json:"artistStyle"`
	Prompt       string `json:"prompt"`
	Lyrics       string `json:"lyrics"`
	Instrumental bool   `json:"instrumental"`
	CoverImage   string `json:"coverImage"` // optional data URL
}

// GeneratePromptHandler 生成音乐提示词
func (h *APIHandler) GeneratePromptHandler(w http.ResponseWriter, r *http.Request) {
	var body promptBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	prompt, err := h.GenAI.GeneratePrompt(r.Context(), body.Artist, body.Vibe, body.Lyrics)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

// GenerateLyricsHandler 生成歌词
func (h *APIHandler) GenerateLyricsHandler(w http.ResponseWriter, r *http.Request) {
	var body promptBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	lyrics, err := h.GenAI.GenerateLyrics(r.Context(), body.Artist, body.Vibe)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lyrics": lyrics})
}

// GenerateCoverHandler 生成封面图，返回 data URL
func (h *APIHandler) GenerateCoverHandler(w http.ResponseWriter, r *http.Request) {
	var body coverBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Title) == "" || strings.TrimSpace(body.ArtistStyle) == "" {
		writeError(w, r, fmt.Errorf("%w: title and artist style are required", library.ErrInvalidInput))
		return
	}

	prompt := genai.CoverArtPrompt(body.Title, body.ArtistStyle, body.Prompt, body.Vibe)
	img, err := h.GenAI.GenerateCoverArt(r.Context(), prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"prompt":   prompt,
		"mimeType": img.MimeType,
		"image":    "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
	})
}

// parseDataURL decodes a base64 data URL into a File.
func parseDataURL(name, dataURL string) (*library.File, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: cover image must be a data URL", library.ErrInvalidInput)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: cover image must be base64 encoded", library.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: cover image: %v", library.ErrInvalidInput, err)
	}
	mime := strings.TrimSuffix(meta, ";base64")
	ext := ".png"
	if mime == "image/jpeg" {
		ext = ".jpg"
	}
	return library.BytesFile(name+ext, mime, data), nil
}

// CreateSongHandler 提交生成任务，进度通过 websocket 推送
func (h *APIHandler) CreateSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	var body songBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	req := generation.Request{
		Title:        body.Title,
		ArtistStyle:  body.ArtistStyle,
		Prompt:       body.Prompt,
		Lyrics:       body.Lyrics,
		Instrumental: body.Instrumental,
	}
	if body.CoverImage != "" {
		cover, err := parseDataURL("cover", body.CoverImage)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Cover = cover
	}

	job, err := h.Jobs.Submit(userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// ListJobsHandler 列出当前用户的生成任务
func (h *APIHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.Jobs.List(userID))
}

// GetJobHandler 查询任务状态
func (h *APIHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	job, ok := h.Jobs.Get(mux.Vars(r)["id"])
	if !ok || job.UserID != userID {
		writeError(w, r, generation.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJobHandler 取消任务
func (h *APIHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	if job, ok := h.Jobs.Get(id); !ok || job.UserID != userID {
		writeError(w, r, generation.ErrJobNotFound)
		return
	}
	cancelled, err := h.Jobs.Cancel(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !cancelled {
		writeMessage(w, http.StatusConflict, "job already finished")
		return
	}
	job, _ := h.Jobs.Get(id)
	writeJSON(w, http.StatusOK, job)
}

// SaveSongHandler stores an externally produced song with an optional cover.
func (h *APIHandler) SaveSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	if err := parseUpload(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, closeAll, err := openFiles(r, "songFile", "secondarySongFile", "coverFile")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeAll()

	cover := files[2]
	if cover == nil {
		if dataURL := trimmed(r, "coverImage"); dataURL != "" {
			if cover, err = parseDataURL("cover", dataURL); err != nil {
				writeError(w, r, err)
				return
			}
		}
	}

	track, err := h.Library.SaveGenerated(r.Context(), library.SaveInput{
		UserID:      userID,
		Title:       trimmed(r, "title"),
		ArtistStyle: trimmed(r, "artistStyle"),
		Prompt:      trimmed(r, "prompt"),
		Primary:     files[0],
		Secondary:   files[1],
		Cover:       cover,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

// JobsWebSocketHandler streams job progress. Without an id it follows
// every job of the caller; with one, only that job.
func (h *APIHandler) JobsWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	jobID := mux.Vars(r)["id"]
	if jobID != "" {
		if job, ok := h.Jobs.Get(jobID); !ok || job.UserID != userID {
			writeError(w, r, generation.ErrJobNotFound)
			return
		}
	}

	conn, err := hub.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("[WS] 升级失败", logger.ErrorField(err))
		return
	}
	key := jobID
	if key == "" {
		key = hub.UserKey(userID)
	}
	hub.NewClient(h.Hub, conn, key).Start()
}
