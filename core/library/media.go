package library

import (
	"bytes"
	"io"
	"path"
	"strings"

	"songforge/storage"

	"github.com/dhowden/tag"
)

// File is one uploaded or generated media file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// BytesFile wraps in-memory data as a File.
func BytesFile(name, contentType string, data []byte) *File {
	return &File{Name: name, ContentType: contentType, Size: int64(len(data)), Body: bytes.NewReader(data)}
}

// ext returns the lowercased extension of the file, or fallback.
func (f *File) ext(fallback string) string {
	if e := strings.ToLower(path.Ext(f.Name)); e != "" && len(e) <= 6 {
		return e
	}
	switch f.ContentType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return fallback
}

func (f *File) contentType() string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	return storage.ContentType(f.Name)
}

// embedded is what the audio file's own tags offer.
type embedded struct {
	Title   string
	Picture *tag.Picture
}

// readTags reads ID3/MP4/FLAC tags and rewinds the body.
func readTags(f *File) embedded {
	var out embedded
	if f == nil || f.Body == nil {
		return out
	}
	defer f.Body.Seek(0, io.SeekStart)

	meta, err := tag.ReadFrom(f.Body)
	if err != nil {
		return out
	}
	out.Title = strings.TrimSpace(meta.Title())
	if pic := meta.Picture(); pic != nil && len(pic.Data) > 0 {
		out.Picture = pic
	}
	return out
}

// pictureFile turns an embedded picture into a File.
func pictureFile(pic *tag.Picture) *File {
	ext := strings.ToLower(pic.Ext)
	if ext == "" {
		ext = "jpg"
	}
	mime := pic.MIMEType
	if mime == "" {
		mime = storage.ContentType("cover." + ext)
	}
	return BytesFile("cover."+ext, mime, pic.Data)
}
