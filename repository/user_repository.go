package repository

import (
	"context"
	"fmt"

	"songforge/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// SettingsRepository 用户设置的读写
type SettingsRepository interface {
	Get(ctx context.Context, userID int64) (*model.UserSettings, error)
	Save(ctx context.Context, settings *model.UserSettings) error
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a gorm-backed UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// CreateUser adds a new user and fills in its ID.
func (r *gormUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Username, translate(err))
	}
	return nil
}

func (r *gormUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *gormUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *gormUserRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

type gormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a gorm-backed SettingsRepository.
func NewGormSettingsRepository(db *gorm.DB) SettingsRepository {
	return &gormSettingsRepository{db: db}
}

// Get 未保存过设置的用户返回空设置而不是 ErrNotFound
func (r *gormSettingsRepository) Get(ctx context.Context, userID int64) (*model.UserSettings, error) {
	var s model.UserSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		if translate(err) == ErrNotFound {
			return &model.UserSettings{UserID: userID}, nil
		}
		return nil, err
	}
	return &s, nil
}

// Save upserts the settings row.
func (r *gormSettingsRepository) Save(ctx context.Context, settings *model.UserSettings) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"suno_api_key", "updated_at"}),
	}).Create(settings).Error
	if err != nil {
		return fmt.Errorf("failed to save settings for user %d: %w", settings.UserID, err)
	}
	return nil
}
