package playback

import (
	"sync"

	"songforge/model"
)

// ListQueue is a Queue over an ordered slice of tracks.
type ListQueue struct {
	mu     sync.RWMutex
	tracks []*model.Track
}

func NewListQueue(tracks []*model.Track) *ListQueue {
	return &ListQueue{tracks: tracks}
}

func (q *ListQueue) Set(tracks []*model.Track) {
	q.mu.Lock()
	q.tracks = tracks
	q.mu.Unlock()
}

func (q *ListQueue) Tracks() []*model.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.tracks
}

func (q *ListQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

// Index returns the position of id, or -1.
func (q *ListQueue) Index(id string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.indexLocked(id)
}

func (q *ListQueue) indexLocked(id string) int {
	for i, t := range q.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Adjacent returns the track delta positions away from id. It does not wrap.
func (q *ListQueue) Adjacent(id string, delta int) (*model.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	j := i + delta
	if j < 0 || j >= len(q.tracks) {
		return nil, false
	}
	return q.tracks[j], true
}
