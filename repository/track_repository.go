package repository

import (
	"context"
	"fmt"

	"songforge/model"

	"gorm.io/gorm"
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, id string) (*model.Track, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Track, error)
	ListAll(ctx context.Context) ([]*model.Track, error)
	Delete(ctx context.Context, id string) error
	// UpdateVersions 持久化主/副版本地址
	UpdateVersions(ctx context.Context, id, songURL, secondaryURL string) error
	// AllURLs 返回所有被引用的媒体地址，用于孤儿对象巡检
	AllURLs(ctx context.Context) ([]string, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a gorm-backed TrackRepository.
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return fmt.Errorf("failed to create track: %w", translate(err))
	}
	return nil
}

func (r *gormTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error; err != nil {
		return nil, translate(err)
	}
	return &track, nil
}

// ListByUser returns a user's tracks, newest first.
func (r *gormTrackRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks for user %d: %w", userID, err)
	}
	return tracks, nil
}

// ListAll returns every track, newest first.
func (r *gormTrackRepository) ListAll(ctx context.Context) ([]*model.Track, error) {
	var tracks []*model.Track
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

func (r *gormTrackRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Track{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete track %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTrackRepository) UpdateVersions(ctx context.Context, id, songURL, secondaryURL string) error {
	res := r.db.WithContext(ctx).Model(&model.Track{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"song_url":           songURL,
			"secondary_song_url": secondaryURL,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update versions of track %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTrackRepository) AllURLs(ctx context.Context) ([]string, error) {
	var rows []model.Track
	err := r.db.WithContext(ctx).
		Select("song_url", "secondary_song_url", "cover_art_url").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(rows)*2)
	for _, t := range rows {
		for _, u := range []string{t.SongURL, t.SecondarySongURL, t.CoverArtURL} {
			if u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls, nil
}
