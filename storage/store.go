package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	ContentType  string    `json:"contentType"`
	ETag         string    `json:"etag"`
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64            `json:"totalObjects"`
	TotalSize    int64            `json:"totalSize"`
	LastModified time.Time        `json:"lastModified"`
	ByCategory   map[string]int64 `json:"byCategory"`
}

// ObjectStore stores audio and cover-art objects under slash-separated keys
// and hands out stable public URLs for them.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Remove deletes every key; missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	URL(key string) string
	// KeyFromURL reverses URL; ok is false for URLs this store did not issue.
	KeyFromURL(url string) (key string, ok bool)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Stats 汇总对象列表
func Stats(objects []ObjectInfo) *BucketStats {
	stats := &BucketStats{ByCategory: make(map[string]int64)}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		stats.ByCategory[Category(obj.Key)] += obj.Size
	}
	return stats
}

// Category 从文件名推断内容类别
func Category(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".mp4", ".avi", ".mov", ".mkv":
		return "video"
	default:
		return "other"
	}
}

// ContentType guesses a MIME type for the object key's extension.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func keyFromBase(base, url string) (string, bool) {
	prefix := base + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if key == "" {
		return "", false
	}
	return key, true
}
