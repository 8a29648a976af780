package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data []byte
	info ObjectInfo
}

// MemoryStore keeps objects in process memory. URLs point at the server's
// /media route, which streams them back through Get.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	baseURL string

	// FailPut, when set, is consulted before every Put.
	FailPut func(key string) error
}

// memReader is seekable so HTTP range requests work.
type memReader struct{ *bytes.Reader }

func (memReader) Close() error { return nil }

// NewMemoryStore creates a store whose URLs are baseURL + "/" + key.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memObject),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if s.FailPut != nil {
		if err := s.FailPut(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if contentType == "" {
		contentType = ContentType(key)
	}
	s.mu.Lock()
	s.objects[key] = memObject{data: data, info: ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		LastModified: time.Now(),
		ContentType:  contentType,
	}}
	s.mu.Unlock()
	return s.URL(key), nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return memReader{bytes.NewReader(obj.data)}, obj.info, nil
}

func (s *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return s.baseURL + "/" + key
}

func (s *MemoryStore) KeyFromURL(url string) (string, bool) {
	return keyFromBase(s.baseURL, url)
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ObjectInfo
	for k, obj := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
