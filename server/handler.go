package server

import (
	"context"

	"songforge/config"
	"songforge/core/auth"
	"songforge/core/generation"
	"songforge/core/genai"
	"songforge/core/hub"
	"songforge/core/library"
	"songforge/repository"
)

// Generator is the generative-text backend used by the create endpoints.
type Generator interface {
	GeneratePrompt(ctx context.Context, artist, vibe, lyrics string) (string, error)
	GenerateLyrics(ctx context.Context, artist, vibe string) (string, error)
	GenerateCoverArt(ctx context.Context, prompt string) (*genai.Image, error)
}

// Deps are the collaborators an APIHandler serves requests with.
type Deps struct {
	Tokens   *auth.TokenManager
	Users    repository.UserRepository
	Settings repository.SettingsRepository
	Library  *library.Service
	GenAI    Generator
	Jobs     *generation.Manager
	Hub      *hub.Hub
	// Health reports backend availability; nil means always healthy.
	Health func(ctx context.Context) error
}

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg *config.Config
	Deps
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(cfg *config.Config, deps Deps) *APIHandler {
	return &APIHandler{cfg: cfg, Deps: deps}
}
