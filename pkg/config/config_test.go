package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":5001", cfg.Server.Address)
	assert.Equal(t, "/ws", cfg.Signal.Path)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 255*1024, cfg.Store.ChunkSize)
	assert.Equal(t, "ffmpeg", cfg.Transcode.FFmpegPath)
	assert.Equal(t, 5*time.Second, cfg.Quality.LiveSampleInterval)
	assert.Equal(t, 10*time.Second, cfg.Quality.RecordingSampleInterval)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServerURLs())
	assert.False(t, cfg.Redis.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestICEServerURLsFlattens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WebRTC.ICEServers = []ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "c"},
	}
	assert.Equal(t,
		[]string{"stun:stun.example.com:3478", "turn:turn.example.com:3478"},
		cfg.ICEServerURLs())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":5001", cfg.Server.Address)
}

func TestLoadYAMLOverrides(t *testing.T) {
	yaml := `
server:
  address: ":6001"
auth:
  jwt_secret: "test-secret"
quality:
  live_sample_interval: 2s
redis:
  enabled: true
  address: "redis:6379"
  pool_size: 5
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6001", cfg.Server.Address)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Second, cfg.Quality.LiveSampleInterval)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	// Untouched values keep defaults.
	assert.Equal(t, "/ws", cfg.Signal.Path)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"empty credentials", func(c *Config) { c.Auth.Username = "" }},
		{"zero chunk size", func(c *Config) { c.Store.ChunkSize = 0 }},
		{"empty ffmpeg path", func(c *Config) { c.Transcode.FFmpegPath = "" }},
		{"backup enabled without directory", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Directory = ""
		}},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"rate limiting enabled with zero rps", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STREAMCAST_SERVER_ADDRESS", ":7001")
	t.Setenv("STREAMCAST_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7001", cfg.Server.Address)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}
