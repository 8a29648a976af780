package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"songforge/core/hub"
	"songforge/core/library"
	"songforge/core/suno"
	"songforge/logger"
	"songforge/model"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned when no more jobs can be queued.
	ErrQueueFull = errors.New("generation queue is full")
	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = errors.New("job not found")
)

// maxAudioSize caps one downloaded clip.
const maxAudioSize = 100 << 20

const (
	defaultKeepFinished = 50
	defaultFinishedTTL  = 24 * time.Hour
)

// Synthesizer is the music-synthesis backend.
type Synthesizer interface {
	Generate(ctx context.Context, apiKey string, req suno.Request) (string, error)
	Wait(ctx context.Context, apiKey, taskID string, onPoll func(poll int, rec *suno.Record)) (*suno.Record, error)
	Download(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Saver persists a finished song.
type Saver interface {
	SaveGenerated(ctx context.Context, in library.SaveInput) (*model.Track, error)
}

// KeyFunc resolves the synthesis API key for a user; "" means the default.
type KeyFunc func(ctx context.Context, userID int64) (string, error)

// Request is a song generation order.
type Request struct {
	Title        string
	ArtistStyle  string
	Prompt       string
	Lyrics       string
	Instrumental bool
	Cover        *library.File
}

type entry struct {
	job    *model.GenerationJob
	req    Request
	cancel context.CancelFunc
}

// Manager runs generation jobs on a fixed worker pool.
type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*entry
	queue   chan *entry
	workers int

	// 已结束的任务每个用户最多保留 keepFinished 个，超过 finishedTTL 的丢弃
	keepFinished int
	finishedTTL  time.Duration

	synth Synthesizer
	saver Saver
	keys  KeyFunc
	hub   hub.Broadcaster
}

// NewManager creates a manager. hub and keys may be nil.
func NewManager(workers int, synth Synthesizer, saver Saver, keys KeyFunc, b hub.Broadcaster) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		jobs:         make(map[string]*entry),
		queue:        make(chan *entry, 100),
		workers:      workers,
		keepFinished: defaultKeepFinished,
		finishedTTL:  defaultFinishedTTL,
		synth:        synth,
		saver:        saver,
		keys:         keys,
		hub:          b,
	}
}

// Start launches the workers; they stop when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.workers; i++ {
		go m.worker(ctx)
	}
	logger.Info("[Jobs] 任务队列已启动", logger.Int("workers", m.workers))
}

// Submit validates req and queues it for userID.
func (m *Manager) Submit(userID int64, req Request) (model.GenerationJob, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Title == "" || req.Prompt == "" {
		return model.GenerationJob{}, fmt.Errorf("%w: title and prompt are required", library.ErrInvalidInput)
	}

	e := &entry{
		req: req,
		job: &model.GenerationJob{
			ID:           uuid.NewString(),
			UserID:       userID,
			Status:       model.JobStatusQueued,
			Title:        req.Title,
			ArtistStyle:  strings.TrimSpace(req.ArtistStyle),
			Prompt:       req.Prompt,
			Lyrics:       req.Lyrics,
			Instrumental: req.Instrumental,
			CreatedAt:    time.Now(),
		},
	}

	m.mu.Lock()
	select {
	case m.queue <- e:
		m.jobs[e.job.ID] = e
	default:
		m.mu.Unlock()
		return model.GenerationJob{}, ErrQueueFull
	}
	snapshot := *e.job
	m.mu.Unlock()

	m.publish(snapshot, "status", "queued")
	logger.Info("[Jobs] 新任务", logger.String("jobId", snapshot.ID), logger.Int64("userId", userID), logger.String("title", snapshot.Title))
	return snapshot, nil
}

// Get returns a copy of the job.
func (m *Manager) Get(id string) (model.GenerationJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[id]
	if !ok {
		return model.GenerationJob{}, false
	}
	return *e.job, true
}

// List returns the user's jobs, newest first.
func (m *Manager) List(userID int64) []model.GenerationJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.GenerationJob, 0)
	for _, e := range m.jobs {
		if e.job.UserID == userID {
			out = append(out, *e.job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cancel stops a queued or running job. It reports false for finished jobs.
func (m *Manager) Cancel(id string) (bool, error) {
	m.mu.Lock()
	e, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return false, ErrJobNotFound
	}
	if e.job.Status.Terminal() {
		m.mu.Unlock()
		return false, nil
	}
	if e.cancel != nil {
		// 运行中：由 worker 收尾
		e.cancel()
		m.mu.Unlock()
		return true, nil
	}
	m.mu.Unlock()

	m.finish(id, model.JobStatusCancelled, "", "cancelled")
	return true, nil
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.queue:
			m.run(ctx, e)
		}
	}
}

func (m *Manager) run(parent context.Context, e *entry) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	m.mu.Lock()
	if e.job.Status != model.JobStatusQueued {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	e.job.Status = model.JobStatusProcessing
	e.job.StartedAt = &now
	e.cancel = cancel
	id := e.job.ID
	m.mu.Unlock()

	trackID, err := m.process(ctx, e)
	switch {
	case err == nil:
		m.finish(id, model.JobStatusCompleted, trackID, "completed")
	case ctx.Err() != nil && parent.Err() == nil:
		m.finish(id, model.JobStatusCancelled, "", "cancelled")
	default:
		logger.Warn("[Jobs] 任务失败", logger.String("jobId", id), logger.ErrorField(err))
		m.finish(id, model.JobStatusFailed, "", err.Error())
	}
}

func (m *Manager) process(ctx context.Context, e *entry) (string, error) {
	job := m.snapshot(e)

	apiKey := ""
	if m.keys != nil {
		k, err := m.keys(ctx, job.UserID)
		if err != nil {
			return "", fmt.Errorf("load api key: %w", err)
		}
		apiKey = k
	}

	m.stage(e, model.StageSubmitting, "submitting to the synthesis service")
	taskID, err := m.synth.Generate(ctx, apiKey, suno.Request{
		Prompt:       job.Prompt,
		Style:        job.ArtistStyle,
		Title:        job.Title,
		Lyrics:       job.Lyrics,
		Instrumental: job.Instrumental,
	})
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	e.job.TaskID = taskID
	m.mu.Unlock()
	m.stage(e, model.StageGenerating, "generating")

	rec, err := m.synth.Wait(ctx, apiKey, taskID, func(poll int, rec *suno.Record) {
		m.mu.Lock()
		e.job.Polls = poll
		e.job.RemoteStatus = rec.Status
		snap := *e.job
		m.mu.Unlock()
		m.publish(snap, "poll", fmt.Sprintf("poll %d: %s", poll, rec.Status))
	})
	if err != nil {
		return "", err
	}
	if len(rec.Clips) == 0 || rec.Clips[0].AudioURL == "" {
		return "", fmt.Errorf("%w: no audio in result", suno.ErrUpstream)
	}

	m.stage(e, model.StageDownloading, "downloading audio")
	primary, err := m.download(ctx, rec.Clips[0].AudioURL, "primary.mp3")
	if err != nil {
		return "", err
	}
	var secondary *library.File
	if len(rec.Clips) > 1 && rec.Clips[1].AudioURL != "" {
		if secondary, err = m.download(ctx, rec.Clips[1].AudioURL, "secondary.mp3"); err != nil {
			return "", err
		}
	}
	cover := e.req.Cover
	if cover == nil && rec.Clips[0].ImageURL != "" {
		if cover, err = m.download(ctx, rec.Clips[0].ImageURL, "cover.jpg"); err != nil {
			// 封面缺失不影响歌曲
			logger.Warn("[Jobs] 封面下载失败", logger.String("jobId", job.ID), logger.ErrorField(err))
			cover = nil
		}
	}

	m.stage(e, model.StageSaving, "saving to library")
	track, err := m.saver.SaveGenerated(ctx, library.SaveInput{
		UserID:      job.UserID,
		Title:       job.Title,
		ArtistStyle: job.ArtistStyle,
		Prompt:      job.Prompt,
		Primary:     primary,
		Secondary:   secondary,
		Cover:       cover,
	})
	if err != nil {
		return "", err
	}
	return track.ID, nil
}

func (m *Manager) download(ctx context.Context, url, name string) (*library.File, error) {
	body, _, err := m.synth.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	if len(data) > maxAudioSize {
		return nil, fmt.Errorf("download %s: file too large", name)
	}
	return library.BytesFile(name, "", data), nil
}

func (m *Manager) snapshot(e *entry) model.GenerationJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *e.job
}

func (m *Manager) stage(e *entry, stage model.JobStage, msg string) {
	m.mu.Lock()
	e.job.Stage = stage
	snap := *e.job
	m.mu.Unlock()
	m.publish(snap, "status", msg)
}

// finish moves the job into a terminal status exactly once.
func (m *Manager) finish(id string, status model.JobStatus, trackID, msg string) {
	m.mu.Lock()
	e, ok := m.jobs[id]
	if !ok || e.job.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	e.job.Status = status
	e.job.CompletedAt = &now
	e.job.TrackID = trackID
	if status == model.JobStatusFailed {
		e.job.Error = msg
	}
	e.cancel = nil
	snap := *e.job
	m.pruneLocked(e.job.UserID, now)
	m.mu.Unlock()

	msgType := "status"
	switch status {
	case model.JobStatusCompleted:
		msgType = "complete"
	case model.JobStatusFailed:
		msgType = "error"
	}
	m.publish(snap, msgType, msg)
	logger.Info("[Jobs] 任务结束", logger.String("jobId", id), logger.String("status", string(status)))
}

// pruneLocked drops expired finished jobs, then trims userID's finished jobs
// to the newest keepFinished. Queued and running jobs are never dropped.
func (m *Manager) pruneLocked(userID int64, now time.Time) {
	var finished []*entry
	for id, e := range m.jobs {
		if !e.job.Status.Terminal() || e.job.CompletedAt == nil {
			continue
		}
		if m.finishedTTL > 0 && now.Sub(*e.job.CompletedAt) > m.finishedTTL {
			delete(m.jobs, id)
			continue
		}
		if e.job.UserID == userID {
			finished = append(finished, e)
		}
	}
	if m.keepFinished <= 0 || len(finished) <= m.keepFinished {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].job.CompletedAt.After(*finished[j].job.CompletedAt)
	})
	for _, e := range finished[m.keepFinished:] {
		delete(m.jobs, e.job.ID)
	}
	logger.Debug("[Jobs] 清理已结束任务", logger.Int64("userId", userID), logger.Int("dropped", len(finished)-m.keepFinished))
}

func (m *Manager) publish(job model.GenerationJob, msgType, msg string) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(model.ProgressMessage{
		JobID:     job.ID,
		UserID:    job.UserID,
		Type:      msgType,
		Status:    job.Status,
		Stage:     job.Stage,
		Message:   msg,
		TrackID:   job.TrackID,
		Timestamp: time.Now(),
	})
}
