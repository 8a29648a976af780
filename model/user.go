package model

import "time"

// User represents a user in the system.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"` // Not exposed in API responses
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSettings 用户级别的设置，替代浏览器本地存储
type UserSettings struct {
	UserID     int64     `gorm:"primaryKey" json:"userId"`
	SunoAPIKey string    `gorm:"type:varchar(255)" json:"-"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SettingsView is the client-facing shape of UserSettings. The key itself
// never leaves the server once saved.
type SettingsView struct {
	HasSunoAPIKey bool      `json:"hasSunoApiKey"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// View hides secrets.
func (s *UserSettings) View() SettingsView {
	if s == nil {
		return SettingsView{}
	}
	return SettingsView{HasSunoAPIKey: s.SunoAPIKey != "", UpdatedAt: s.UpdatedAt}
}
