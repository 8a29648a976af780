package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"songforge/core/auth"
	"songforge/core/generation"
	"songforge/core/genai"
	"songforge/core/library"
	"songforge/core/suno"
	"songforge/logger"
	"songforge/repository"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("[HTTP] 编码响应失败", logger.ErrorField(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps an error onto its HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, library.ErrInvalidInput), errors.Is(err, genai.ErrEmptyInput), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, library.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, library.ErrNotFound), errors.Is(err, repository.ErrNotFound), errors.Is(err, generation.ErrJobNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "already exists"
	case errors.Is(err, suno.ErrMissingAPIKey):
		return http.StatusBadRequest, "music service API key not set; add it in settings"
	case errors.Is(err, generation.ErrQueueFull):
		return http.StatusServiceUnavailable, "generation queue is full, try again later"
	case errors.Is(err, genai.ErrNotConfigured):
		return http.StatusServiceUnavailable, "generative service is not configured"
	case errors.Is(err, genai.ErrUpstream), errors.Is(err, suno.ErrUpstream):
		return http.StatusBadGateway, "upstream service failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError logs err and replies with its mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[HTTP] 请求失败",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.ErrorField(err))
	} else {
		logger.Warn("[HTTP] 请求被拒绝",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.ErrorField(err))
	}
	writeMessage(w, status, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", library.ErrInvalidInput)
	}
	return nil
}
