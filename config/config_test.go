package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "ffmpeg", cfg.Media.FFmpegPath)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 0.5, cfg.Detect.VeryNearArea)
	assert.Equal(t, 0.05, cfg.Detect.NearArea)
	assert.Equal(t, 0.02, cfg.Detect.VeryFarArea)
	assert.Contains(t, cfg.Detect.Obstacles, "traffic light")
	assert.Contains(t, cfg.PromptTemplate, "{transcript}")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  base_url: "https://vision.example.com"
gateway:
  api_key: "file-key"
  max_concepts: 5
cache:
  backend: redis
  redis_addr: "127.0.0.1:6379"
  ttl: 1m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "https://vision.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "file-key", cfg.Gateway.APIKey)
	assert.Equal(t, 5, cfg.Gateway.MaxConcepts)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)

	// Untouched sections keep their defaults.
	assert.Equal(t, "ffmpeg", cfg.Media.FFmpegPath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLARIFAI_API_KEY", "env-key")
	t.Setenv("SIGHTLINE_ADDR", ":7070")
	t.Setenv("SIGHTLINE_POOL_SIZE", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Gateway.APIKey)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Media.PoolSize)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  api_key: file-key\n"), 0o600))

	t.Setenv("CLARIFAI_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Gateway.APIKey)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Gateway.APIKey = "k"
		return cfg
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Gateway.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.Backend = "memcached"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.Backend = "redis"
	assert.Error(t, cfg.Validate(), "redis backend needs an address")

	cfg = base()
	cfg.Detect.VeryNearArea = 0.01
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
