package server

import (
	"net/http"
	"strings"
	"time"

	"songforge/logger"
)

type settingsBody struct {
	// SunoAPIKey replaces the stored key; an empty string clears it.
	SunoAPIKey *string `json:"sunoApiKey"`
}

// GetSettingsHandler 读取用户设置（不回传密钥）
func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	settings, err := h.Settings.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings.View())
}

// SaveSettingsHandler 保存用户设置
func (h *APIHandler) SaveSettingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	var body settingsBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	settings, err := h.Settings.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if body.SunoAPIKey != nil {
		settings.SunoAPIKey = strings.TrimSpace(*body.SunoAPIKey)
	}
	settings.UserID = userID
	settings.UpdatedAt = time.Now()
	if err := h.Settings.Save(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("[Settings] 用户设置已更新", logger.Int64("userId", userID), logger.Bool("hasSunoKey", settings.SunoAPIKey != ""))
	writeJSON(w, http.StatusOK, settings.View())
}
