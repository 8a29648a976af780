package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"songforge/cache"
	"songforge/logger"
	"songforge/model"
	"songforge/repository"
	"songforge/storage"

	"github.com/google/uuid"
)

// PlaceholderCover is used when a track has no cover of its own.
const PlaceholderCover = "https://picsum.photos/seed/%s/400"

// DefaultRequestLimit caps ListRequests.
const DefaultRequestLimit = 200

// UploadInput describes a user upload.
type UploadInput struct {
	UserID      int64
	Title       string
	ArtistStyle string
	Primary     *File
	Secondary   *File
	Cover       *File
}

// SaveInput describes a generated song being persisted.
type SaveInput struct {
	UserID      int64
	Title       string
	ArtistStyle string
	Prompt      string
	Primary     *File
	Secondary   *File
	Cover       *File
}

// Service implements the library flows on top of the database and object store.
type Service struct {
	tracks   repository.TrackRepository
	requests repository.SongRequestRepository
	store    storage.ObjectStore
	cache    cache.LibraryCache
}

// NewService creates a library service. A nil cache disables caching.
func NewService(tracks repository.TrackRepository, requests repository.SongRequestRepository, store storage.ObjectStore, c cache.LibraryCache) *Service {
	if c == nil {
		c = cache.NoopLibraryCache{}
	}
	return &Service{tracks: tracks, requests: requests, store: store, cache: c}
}

// Store exposes the object store for media streaming.
func (s *Service) Store() storage.ObjectStore { return s.store }

// Upload stores the user's files and records a new track.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.Track, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.ArtistStyle = strings.TrimSpace(in.ArtistStyle)
	if in.Primary == nil || in.Primary.Body == nil {
		return nil, fmt.Errorf("%w: song file is required", ErrInvalidInput)
	}
	if in.ArtistStyle == "" {
		return nil, fmt.Errorf("%w: artist style is required", ErrInvalidInput)
	}

	tags := readTags(in.Primary)
	if in.Title == "" {
		in.Title = tags.Title
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	cover := in.Cover
	if cover == nil && tags.Picture != nil {
		cover = pictureFile(tags.Picture)
	}

	return s.persist(ctx, &model.Track{
		UserID:      in.UserID,
		Title:       in.Title,
		ArtistStyle: in.ArtistStyle,
	}, in.Primary, in.Secondary, cover)
}

// SaveGenerated stores a generated song and records it as a new track.
func (s *Service) SaveGenerated(ctx context.Context, in SaveInput) (*model.Track, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Prompt = strings.TrimSpace(in.Prompt)
	switch {
	case in.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case in.Prompt == "":
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	case in.Primary == nil || in.Primary.Body == nil:
		return nil, fmt.Errorf("%w: song file is required", ErrInvalidInput)
	}

	return s.persist(ctx, &model.Track{
		UserID:      in.UserID,
		Title:       in.Title,
		ArtistStyle: strings.TrimSpace(in.ArtistStyle),
		Prompt:      in.Prompt,
	}, in.Primary, in.Secondary, in.Cover)
}

// persist uploads the files then inserts the row. Any failure removes
// every object uploaded so far before the error is returned.
func (s *Service) persist(ctx context.Context, track *model.Track, primary, secondary, cover *File) (*model.Track, error) {
	up := &uploads{store: s.store, userID: track.UserID}
	track.ID = uuid.NewString()

	url, err := up.put(ctx, "songs", primary, ".mp3")
	if err != nil {
		return nil, up.fail(ctx, fmt.Errorf("failed to upload song: %w", err))
	}
	track.SongURL = url

	if secondary != nil && secondary.Body != nil {
		url, err := up.put(ctx, "songs", secondary, ".mp3")
		if err != nil {
			return nil, up.fail(ctx, fmt.Errorf("failed to upload secondary song: %w", err))
		}
		track.SecondarySongURL = url
	}

	if cover != nil && cover.Body != nil {
		url, err := up.put(ctx, "covers", cover, ".jpg")
		if err != nil {
			return nil, up.fail(ctx, fmt.Errorf("failed to upload cover art: %w", err))
		}
		track.CoverArtURL = url
	} else {
		track.CoverArtURL = fmt.Sprintf(PlaceholderCover, uuid.NewString())
	}

	if err := s.tracks.Create(ctx, track); err != nil {
		return nil, up.fail(ctx, fmt.Errorf("failed to save track: %w", err))
	}

	s.invalidate(ctx)
	logger.Info("[Library] 新增曲目",
		logger.String("trackId", track.ID),
		logger.Int64("userId", track.UserID),
		logger.String("title", track.Title),
		logger.Int("objects", len(up.keys)))
	return track, nil
}

// uploads tracks objects written during one persist call.
type uploads struct {
	store  storage.ObjectStore
	userID int64
	keys   []string
}

func (u *uploads) put(ctx context.Context, dir string, f *File, fallbackExt string) (string, error) {
	key := fmt.Sprintf("%s/%d/%s%s", dir, u.userID, uuid.NewString(), f.ext(fallbackExt))
	url, err := u.store.Put(ctx, key, f.Body, f.Size, f.contentType())
	if err != nil {
		return "", err
	}
	u.keys = append(u.keys, key)
	return url, nil
}

// fail removes every uploaded object and returns cause unchanged.
func (u *uploads) fail(ctx context.Context, cause error) error {
	if len(u.keys) == 0 {
		return cause
	}
	cleanupCtx := context.WithoutCancel(ctx)
	if err := u.store.Remove(cleanupCtx, u.keys...); err != nil {
		logger.Error("[Library] 回滚已上传对象失败",
			logger.Strings("keys", u.keys),
			logger.ErrorField(err),
			logger.String("cause", cause.Error()))
	} else {
		logger.Warn("[Library] 已回滚上传对象", logger.Strings("keys", u.keys), logger.ErrorField(cause))
	}
	return cause
}

// Delete removes the caller's track and then, best effort, its objects.
func (s *Service) Delete(ctx context.Context, userID int64, trackID string) error {
	track, err := s.owned(ctx, userID, trackID)
	if err != nil {
		return err
	}
	if err := s.tracks.Delete(ctx, trackID); err != nil {
		return notFound(err)
	}
	s.invalidate(ctx)

	var keys []string
	for _, u := range []string{track.SongURL, track.SecondarySongURL, track.CoverArtURL} {
		if key, ok := s.store.KeyFromURL(u); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) > 0 {
		if err := s.store.Remove(context.WithoutCancel(ctx), keys...); err != nil {
			logger.Warn("[Library] 删除曲目对象失败", logger.String("trackId", trackID), logger.ErrorField(err))
		}
	}
	logger.Info("[Library] 删除曲目", logger.String("trackId", trackID), logger.Int64("userId", userID))
	return nil
}

// SwapVersions persists the exchange of the primary and secondary audio.
func (s *Service) SwapVersions(ctx context.Context, userID int64, trackID string) (*model.Track, error) {
	track, err := s.owned(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}
	if !track.HasSecondary() {
		return nil, fmt.Errorf("%w: track has no secondary version", ErrInvalidInput)
	}
	if err := s.tracks.UpdateVersions(ctx, trackID, track.SecondarySongURL, track.SongURL); err != nil {
		return nil, notFound(err)
	}
	track.SongURL, track.SecondarySongURL = track.SecondarySongURL, track.SongURL
	s.invalidate(ctx)
	return track, nil
}

func (s *Service) owned(ctx context.Context, userID int64, trackID string) (*model.Track, error) {
	track, err := s.tracks.GetByID(ctx, trackID)
	if err != nil {
		return nil, notFound(err)
	}
	if track.UserID != userID {
		return nil, ErrForbidden
	}
	return track, nil
}

// List returns the user's tracks, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*model.Track, error) {
	return s.tracks.ListByUser(ctx, userID)
}

// ListPublic returns every track, newest first.
func (s *Service) ListPublic(ctx context.Context) ([]*model.Track, error) {
	if tracks, ok := s.cache.GetPublic(ctx); ok {
		return tracks, nil
	}
	tracks, err := s.tracks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetPublic(ctx, tracks)
	return tracks, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("[Library] 清除公共曲库缓存失败", logger.ErrorField(err))
	}
}

// SubmitRequest records a song request. Anyone may submit.
func (s *Service) SubmitRequest(ctx context.Context, title, artist, description string) (*model.SongRequest, error) {
	req := &model.SongRequest{
		Title:       strings.TrimSpace(title),
		Artist:      strings.TrimSpace(artist),
		Description: strings.TrimSpace(description),
		SubmittedAt: time.Now(),
	}
	if req.Title == "" || req.Artist == "" {
		return nil, fmt.Errorf("%w: title and artist are required", ErrInvalidInput)
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	logger.Info("[Library] 收到点歌请求", logger.String("title", req.Title), logger.String("artist", req.Artist))
	return req, nil
}

// ListRequests returns the most recent song requests.
func (s *Service) ListRequests(ctx context.Context) ([]*model.SongRequest, error) {
	return s.requests.List(ctx, DefaultRequestLimit)
}

// Orphans lists stored objects that no track references. Uploads that are
// still in flight look orphaned too, so callers should not race them.
func (s *Service) Orphans(ctx context.Context) ([]storage.ObjectInfo, error) {
	urls, err := s.tracks.AllURLs(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := s.store.KeyFromURL(u); ok {
			referenced[key] = struct{}{}
		}
	}

	objects, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var orphans []storage.ObjectInfo
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; !ok {
			orphans = append(orphans, obj)
		}
	}
	return orphans, nil
}
