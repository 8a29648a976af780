package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"songforge/config"
	"songforge/logger"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("genai: api key not configured")
	// ErrUpstream wraps failures reported by the remote API.
	ErrUpstream = errors.New("genai: upstream error")
	// ErrEmptyInput is returned when a required argument is blank.
	ErrEmptyInput = errors.New("genai: artist and vibe are required")
)

// Config contains the endpoint settings for the client.
type Config struct {
	BaseURL     string
	APIKey      string
	TextModel   string
	ImageModel  string
	MaxTokens   int
	Temperature float64
}

// ConfigFrom maps the application config onto a client config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:     cfg.GenAIBaseURL,
		APIKey:      cfg.GenAIAPIKey,
		TextModel:   cfg.GenAITextModel,
		ImageModel:  cfg.GenAIImageModel,
		MaxTokens:   2048,
		Temperature: 0.9,
	}
}

// Client talks to an OpenAI-compatible text and image API.
type Client struct {
	mu         sync.RWMutex
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Reconfigure swaps the endpoint settings, e.g. after the env file changes.
func (c *Client) Reconfigure(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	logger.Info("[GenAI] 配置已更新", logger.String("baseURL", cfg.BaseURL), logger.String("model", cfg.TextModel))
}

func (c *Client) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// GeneratePrompt writes a music prompt for the given artist and vibe,
// optionally inspired by lyrics. The result never exceeds MaxPromptLength.
func (c *Client) GeneratePrompt(ctx context.Context, artist, vibe, lyrics string) (string, error) {
	artist, vibe = strings.TrimSpace(artist), strings.TrimSpace(vibe)
	if artist == "" || vibe == "" {
		return "", ErrEmptyInput
	}
	out, err := c.chat(ctx, promptSystemPrompt, promptUserMessage(artist, vibe, lyrics))
	if err != nil {
		return "", fmt.Errorf("generate prompt: %w", err)
	}
	return truncateRunes(strings.TrimSpace(out), MaxPromptLength), nil
}

// GenerateLyrics writes sectioned lyrics in the style of artist.
func (c *Client) GenerateLyrics(ctx context.Context, artist, vibe string) (string, error) {
	artist, vibe = strings.TrimSpace(artist), strings.TrimSpace(vibe)
	if artist == "" || vibe == "" {
		return "", ErrEmptyInput
	}
	out, err := c.chat(ctx, lyricsSystemPrompt, lyricsUserMessage(artist, vibe))
	if err != nil {
		return "", fmt.Errorf("generate lyrics: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	cfg := c.config()
	if cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	reqBody := chatRequest{
		Model: cfg.TextModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	var chatResp chatResponse
	if err := c.post(ctx, cfg, "/chat/completions", reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no response choices returned", ErrUpstream)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// GenerateCoverArt renders prompt into an image.
func (c *Client) GenerateCoverArt(ctx context.Context, prompt string) (*Image, error) {
	cfg := c.config()
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("genai: image prompt is empty")
	}

	reqBody := imageRequest{
		Model:          cfg.ImageModel,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: "b64_json",
	}
	var imgResp imageResponse
	if err := c.post(ctx, cfg, "/images/generations", reqBody, &imgResp); err != nil {
		return nil, fmt.Errorf("generate cover art: %w", err)
	}
	if len(imgResp.Data) == 0 || imgResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("generate cover art: %w: no image data in response", ErrUpstream)
	}

	data, err := base64.StdEncoding.DecodeString(imgResp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("generate cover art: %w: bad image payload: %v", ErrUpstream, err)
	}
	mime := imgResp.Data[0].MimeType
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return &Image{Data: data, MimeType: mime}, nil
}

func (c *Client) post(ctx context.Context, cfg Config, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("[GenAI] 接口返回错误",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(msg)))
		return fmt.Errorf("%w: API returned status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}

	logger.Debug("[GenAI] 请求完成", logger.String("path", path), logger.Duration("elapsed", time.Since(start)))
	return nil
}
