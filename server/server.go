package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"songforge/cache"
	"songforge/config"
	"songforge/core/auth"
	"songforge/core/generation"
	"songforge/core/genai"
	"songforge/core/hub"
	"songforge/core/library"
	"songforge/core/suno"
	"songforge/db"
	"songforge/logger"
	"songforge/repository"
	"songforge/storage"

	"github.com/gorilla/mux"
)

// EnvFile is watched for live reconfiguration of the generation backends.
const EnvFile = ".env"

// MediaPrefix is where the memory store's objects are served.
const MediaPrefix = "/media"

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, loggingMiddleware)

	// 公共接口
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/public/tracks", h.GetPublicTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/public/requests", h.SubmitRequestHandler).Methods(http.MethodPost)
	router.HandleFunc(MediaPrefix+"/{key:.*}", h.MediaHandler).Methods(http.MethodGet, http.MethodHead)

	// 曲库
	router.HandleFunc("/api/tracks", h.AuthMiddleware(h.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/upload", h.AuthMiddleware(h.UploadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}", h.AuthMiddleware(h.DeleteTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/tracks/{id}/swap", h.AuthMiddleware(h.SwapVersionsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/requests", h.AuthMiddleware(h.ListRequestsHandler)).Methods(http.MethodGet)

	// 创作
	router.HandleFunc("/api/create/prompt", h.AuthMiddleware(h.GeneratePromptHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/create/lyrics", h.AuthMiddleware(h.GenerateLyricsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/create/cover", h.AuthMiddleware(h.GenerateCoverHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/create/song", h.AuthMiddleware(h.CreateSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/create/save", h.AuthMiddleware(h.SaveSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/jobs", h.AuthMiddleware(h.ListJobsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}", h.AuthMiddleware(h.GetJobHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}", h.AuthMiddleware(h.CancelJobHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/ws/jobs", h.AuthMiddleware(h.JobsWebSocketHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/ws/jobs/{id}", h.AuthMiddleware(h.JobsWebSocketHandler)).Methods(http.MethodGet)

	// 用户设置
	router.HandleFunc("/api/settings", h.AuthMiddleware(h.GetSettingsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/settings", h.AuthMiddleware(h.SaveSettingsHandler)).Methods(http.MethodPut)

	// 前端页面
	if h.cfg != nil && h.cfg.WebAppDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(h.cfg.WebAppDir)))
	}
	return router
}

// OpenStore picks the object store named by STORAGE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageDriver {
	case "minio":
		return storage.NewMinioStore(ctx, cfg)
	case "memory":
		logger.Warn("[Storage] 使用内存存储，重启后文件将丢失")
		base := cfg.MediaBaseURL
		if base == "" {
			base = MediaPrefix
		}
		return storage.NewMemoryStore(base), nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

// Start runs the server until SIGINT or SIGTERM.
func Start(ctx context.Context, cfg *config.Config) error {
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("JWT_SECRET must be set: %w", err)
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	var libCache cache.LibraryCache = cache.NoopLibraryCache{}
	rdb, err := db.ConnectRedis(cfg)
	if err != nil {
		// 缓存不可用时直接查库
		logger.Warn("[Server] Redis 不可用，公共曲库不做缓存", logger.ErrorField(err))
	} else {
		defer rdb.Close()
		libCache = cache.NewRedisLibraryCache(rdb, cfg.LibraryCacheTTL)
		logger.Info("Successfully connected to Redis")
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	users := repository.NewGormUserRepository(gdb)
	settings := repository.NewGormSettingsRepository(gdb)
	lib := library.NewService(
		repository.NewGormTrackRepository(gdb),
		repository.NewGormSongRequestRepository(gdb),
		store, libCache)

	genaiClient := genai.NewClient(genai.ConfigFrom(cfg))
	sunoClient := suno.NewClient(suno.ConfigFrom(cfg))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobHub := hub.NewHub()
	go jobHub.Run(ctx)

	keys := func(ctx context.Context, userID int64) (string, error) {
		s, err := settings.Get(ctx, userID)
		if err != nil {
			return "", err
		}
		return s.SunoAPIKey, nil
	}
	jobs := generation.NewManager(cfg.JobWorkers, sunoClient, lib, keys, jobHub)
	jobs.Start(ctx)

	if _, err := os.Stat(EnvFile); err == nil {
		go func() {
			err := config.Watch(ctx, EnvFile, func(next *config.Config) {
				genaiClient.Reconfigure(genai.ConfigFrom(next))
				sunoClient.Reconfigure(suno.ConfigFrom(next))
				logger.Info("[Server] 生成服务配置已重新加载", logger.String("file", EnvFile))
			})
			if err != nil {
				logger.Warn("[Server] 配置监听失败", logger.ErrorField(err))
			}
		}()
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	handler := NewAPIHandler(cfg, Deps{
		Tokens:   tokens,
		Users:    users,
		Settings: settings,
		Library:  lib,
		GenAI:    genaiClient,
		Jobs:     jobs,
		Hub:      jobHub,
		Health: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
	})

	// 上传和媒体流可能很慢，不设 WriteTimeout
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
