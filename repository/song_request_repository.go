package repository

import (
	"context"
	"fmt"

	"songforge/model"

	"gorm.io/gorm"
)

// SongRequestRepository 点歌请求
type SongRequestRepository interface {
	Create(ctx context.Context, req *model.SongRequest) error
	List(ctx context.Context, limit int) ([]*model.SongRequest, error)
}

type gormSongRequestRepository struct {
	db *gorm.DB
}

func NewGormSongRequestRepository(db *gorm.DB) SongRequestRepository {
	return &gormSongRequestRepository{db: db}
}

func (r *gormSongRequestRepository) Create(ctx context.Context, req *model.SongRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create song request: %w", err)
	}
	return nil
}

// List returns the newest requests first; limit <= 0 means no limit.
func (r *gormSongRequestRepository) List(ctx context.Context, limit int) ([]*model.SongRequest, error) {
	var reqs []*model.SongRequest
	q := r.db.WithContext(ctx).Order("submitted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list song requests: %w", err)
	}
	return reqs, nil
}
