package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"songforge/logger"
	"songforge/storage"

	"github.com/gorilla/mux"
)

// MediaHandler streams stored objects; memory-backed stores hand out
// URLs that land here.
func (h *APIHandler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" || strings.Contains(key, "..") {
		writeMessage(w, http.StatusBadRequest, "invalid key")
		return
	}

	body, info, err := h.Library.Store().Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeMessage(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, r, err)
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = storage.ContentType(key)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	// 可随机访问时支持 Range 请求
	if rs, ok := body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, key, info.LastModified, rs)
		return
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		logger.Warn("[Media] 传输中断", logger.String("key", key), logger.ErrorField(err))
	}
}

// HealthHandler reports liveness and backend health.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			status["status"] = "degraded"
			status["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}
