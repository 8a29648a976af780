package model

import "time"

// JobStatus represents the current status of a generation job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobStage narrows JobStatusProcessing down to the step in flight.
type JobStage string

const (
	StageSubmitting  JobStage = "submitting"
	StageGenerating  JobStage = "generating"
	StageDownloading JobStage = "downloading"
	StageSaving      JobStage = "saving"
)

// GenerationJob tracks one music-synthesis request from submission to a saved track.
type GenerationJob struct {
	ID           string     `json:"id"`
	UserID       int64      `json:"userId"`
	Status       JobStatus  `json:"status"`
	Stage        JobStage   `json:"stage,omitempty"`
	TaskID       string     `json:"taskId,omitempty"`
	RemoteStatus string     `json:"remoteStatus,omitempty"`
	Polls        int        `json:"polls"`
	Title        string     `json:"title"`
	ArtistStyle  string     `json:"artistStyle"`
	Prompt       string     `json:"prompt"`
	Lyrics       string     `json:"lyrics,omitempty"`
	Instrumental bool       `json:"instrumental"`
	TrackID      string     `json:"trackId,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// ProgressMessage represents a WebSocket progress update message
type ProgressMessage struct {
	JobID     string    `json:"jobId"`
	UserID    int64     `json:"-"`
	Type      string    `json:"type"` // "status", "poll", "complete", "error"
	Status    JobStatus `json:"status"`
	Stage     JobStage  `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	TrackID   string    `json:"trackId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
