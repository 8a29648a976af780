package model

import "time"

// SongRequest is an anonymous visitor's request for a new song.
type SongRequest struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Artist      string    `gorm:"type:varchar(255);not null" json:"artist"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	SubmittedAt time.Time `gorm:"index" json:"submittedAt"`
}
