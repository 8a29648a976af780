package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"songforge/config"
	"songforge/logger"
)

var (
	// ErrMissingAPIKey is returned when neither the user nor the server has a key.
	ErrMissingAPIKey = errors.New("suno: api key not set")
	// ErrUpstream wraps failures reported by the remote API.
	ErrUpstream = errors.New("suno: upstream error")
	// ErrTaskFailed is returned by Wait when the task ends in a failure status.
	ErrTaskFailed = errors.New("suno: generation failed")
	// ErrTimeout is returned by Wait when the task outlives the max wait.
	ErrTimeout = errors.New("suno: generation timed out")
)

// Config contains the endpoint settings for the client.
type Config struct {
	BaseURL      string
	APIKey       string // default key
	Model        string
	PollInterval time.Duration
	MaxWait      time.Duration
	CallbackURL  string
}

// ConfigFrom maps the application config onto a client config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:      cfg.SunoBaseURL,
		APIKey:       cfg.SunoAPIKey,
		Model:        cfg.SunoModel,
		PollInterval: cfg.SunoPollInterval,
		MaxWait:      cfg.SunoMaxWait,
	}
}

// Client is a music-synthesis API client.
type Client struct {
	mu         sync.RWMutex
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Reconfigure swaps the endpoint settings.
func (c *Client) Reconfigure(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	logger.Info("[Suno] 配置已更新", logger.String("baseURL", cfg.BaseURL), logger.String("model", cfg.Model))
}

func (c *Client) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// key picks the caller's key, falling back to the configured default.
func (c *Client) key(userKey string) (string, error) {
	if k := strings.TrimSpace(userKey); k != "" {
		return k, nil
	}
	if k := c.config().APIKey; k != "" {
		return k, nil
	}
	return "", ErrMissingAPIKey
}

// Generate submits req and returns the remote task id.
func (c *Client) Generate(ctx context.Context, apiKey string, req Request) (string, error) {
	key, err := c.key(apiKey)
	if err != nil {
		return "", err
	}
	cfg := c.config()

	body := generateBody{
		Instrumental: req.Instrumental,
		Model:        req.Model,
		CallBackURL:  cfg.CallbackURL,
	}
	if body.Model == "" {
		body.Model = cfg.Model
	}
	if body.CallBackURL == "" {
		// the API insists on a callback; we poll instead
		body.CallBackURL = "https://localhost/noop"
	}
	if req.Title != "" || req.Lyrics != "" {
		// custom mode: prompt carries the lyrics, style the sound description
		body.CustomMode = true
		body.Title = req.Title
		body.Style = req.Style
		if body.Style == "" {
			body.Style = req.Prompt
		}
		if !req.Instrumental {
			body.Prompt = req.Lyrics
		}
	} else {
		body.Prompt = req.Prompt
	}
	if body.Prompt == "" && body.Style == "" {
		return "", errors.New("suno: prompt is required")
	}

	var resp envelope[generateData]
	if err := c.do(ctx, key, http.MethodPost, "/generate", body, &resp); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp.Data.TaskID == "" {
		return "", fmt.Errorf("generate: %w: no task id in response", ErrUpstream)
	}
	logger.Info("[Suno] 任务已提交", logger.String("taskId", resp.Data.TaskID), logger.String("title", req.Title))
	return resp.Data.TaskID, nil
}

// Status fetches the current state of taskID.
func (c *Client) Status(ctx context.Context, apiKey, taskID string) (*Record, error) {
	key, err := c.key(apiKey)
	if err != nil {
		return nil, err
	}
	var resp envelope[recordData]
	path := "/generate/record-info?taskId=" + url.QueryEscape(taskID)
	if err := c.do(ctx, key, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return &Record{
		TaskID:       taskID,
		Status:       resp.Data.Status,
		Clips:        resp.Data.Response.SunoData,
		ErrorMessage: resp.Data.ErrorMessage,
	}, nil
}

// Wait polls taskID until it succeeds, fails, ctx is done or the max wait
// passes. onPoll (may be nil) sees every record fetched.
func (c *Client) Wait(ctx context.Context, apiKey, taskID string, onPoll func(poll int, rec *Record)) (*Record, error) {
	cfg := c.config()
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxWait)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for poll := 1; ; poll++ {
		rec, err := c.Status(ctx, apiKey, taskID)
		switch {
		case err == nil:
			if onPoll != nil {
				onPoll(poll, rec)
			}
			if rec.Status == StatusSuccess {
				return rec, nil
			}
			if Failed(rec.Status) {
				msg := rec.ErrorMessage
				if msg == "" {
					msg = rec.Status
				}
				return rec, fmt.Errorf("%w: %s", ErrTaskFailed, msg)
			}
		case errors.Is(err, ErrMissingAPIKey) || ctx.Err() != nil:
			return nil, c.waitErr(ctx, err)
		default:
			// 单次轮询失败不终止任务
			logger.Warn("[Suno] 轮询失败", logger.String("taskId", taskID), logger.Int("poll", poll), logger.ErrorField(err))
		}

		select {
		case <-ctx.Done():
			return nil, c.waitErr(ctx, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) waitErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Download opens the audio at rawURL. The caller closes the body.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("download: %w", err)
	}
	// 生成的音频可能较大，不使用整体超时
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download: %w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download: %w: status %d", ErrUpstream, resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) do(ctx context.Context, key, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config().BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warn("[Suno] 接口返回错误", logger.String("path", path), logger.Int("status", resp.StatusCode), logger.String("body", string(raw)))
		return fmt.Errorf("%w: API returned status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}

	// 业务码也需要检查
	var head struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(raw, &head)
	if head.Code != 0 && head.Code != http.StatusOK {
		return fmt.Errorf("%w: code %d: %s", ErrUpstream, head.Code, head.Msg)
	}
	return nil
}
