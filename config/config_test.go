package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SUNO_POLL_INTERVAL", "")
	cfg := fromEnv()

	assert.Equal(t, 3*time.Second, cfg.SunoPollInterval)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 2, cfg.JobWorkers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SUNO_POLL_INTERVAL", "500ms")
	t.Setenv("JOB_WORKERS", "not-a-number")
	t.Setenv("MEDIA_BASE_URL", "https://cdn.example.com/media/")

	cfg := fromEnv()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 500*time.Millisecond, cfg.SunoPollInterval)
	assert.Equal(t, 2, cfg.JobWorkers, "invalid ints fall back to the default")
	assert.Equal(t, "https://cdn.example.com/media", cfg.MediaBaseURL)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SUNO_API_KEY=first\n"), 0o644))
	t.Setenv("SUNO_API_KEY", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c *Config) { got <- c })
	}()

	// give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("SUNO_API_KEY=second\n"), 0o644))

	select {
	case cfg := <-got:
		assert.Equal(t, "second", cfg.SunoAPIKey)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
