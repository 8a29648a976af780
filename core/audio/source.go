package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// maxRemoteSize caps how much of a remote file is buffered for decoding.
const maxRemoteSize = 200 << 20

type codec int

const (
	codecMP3 codec = iota
	codecWAV
)

type readSeekNopCloser struct{ *bytes.Reader }

func (readSeekNopCloser) Close() error { return nil }

// open fetches src (http(s) URL, file:// URL or local path) and decodes it.
func open(ctx context.Context, client *http.Client, src string) (beep.StreamSeekCloser, beep.Format, error) {
	rc, contentType, err := fetch(ctx, client, src)
	if err != nil {
		return nil, beep.Format{}, err
	}
	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch detectCodec(src, contentType) {
	case codecWAV:
		s, format, err = wav.Decode(rc)
	default:
		s, format, err = mp3.Decode(rc)
	}
	if err != nil {
		rc.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", src, err)
	}
	return s, format, nil
}

func fetch(ctx context.Context, client *http.Client, src string) (io.ReadCloser, string, error) {
	u, err := url.Parse(src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", src, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", src, err)
		}
		return readSeekNopCloser{bytes.NewReader(data)}, resp.Header.Get("Content-Type"), nil
	}

	p := src
	if err == nil && u.Scheme == "file" {
		p = u.Path
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, "", fmt.Errorf("open: %w", err)
	}
	return f, "", nil
}

func detectCodec(src, contentType string) codec {
	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".wav", ".wave":
		return codecWAV
	case ".mp3":
		return codecMP3
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
			return codecWAV
		}
	}
	return codecMP3
}
