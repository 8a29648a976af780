package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Track is a playable song in a user's library. It has one or two audio
// renditions: the primary SongURL and an optional SecondarySongURL.
type Track struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           int64     `gorm:"index;not null" json:"userId"`
	Title            string    `gorm:"type:varchar(255);not null" json:"title"`
	ArtistStyle      string    `gorm:"type:varchar(255)" json:"artistStyle"`
	Prompt           string    `gorm:"type:text" json:"prompt"`
	CoverArtURL      string    `gorm:"type:varchar(1024)" json:"coverArtUrl"`
	SongURL          string    `gorm:"type:varchar(1024);not null" json:"songUrl"`
	SecondarySongURL string    `gorm:"type:varchar(1024)" json:"secondarySongUrl,omitempty"`
	LyricVideoURL    string    `gorm:"type:varchar(1024)" json:"lyricVideoUrl,omitempty"`
	MusicVideoURL    string    `gorm:"type:varchar(1024)" json:"musicVideoUrl,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a uuid when the caller did not.
func (t *Track) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// HasSecondary reports whether an alternate rendition exists.
func (t *Track) HasSecondary() bool {
	return t != nil && t.SecondarySongURL != ""
}

// AudioURLs lists every stored audio rendition, primary first.
func (t *Track) AudioURLs() []string {
	urls := []string{t.SongURL}
	if t.SecondarySongURL != "" {
		urls = append(urls, t.SecondarySongURL)
	}
	return urls
}
