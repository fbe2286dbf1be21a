package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		Path         string        `yaml:"path"`
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"signal"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		TokenTTL       time.Duration `yaml:"token_ttl"`
		Username       string        `yaml:"username"`
		Password       string        `yaml:"password"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Store struct {
		ChunkSize int `yaml:"chunk_size"` // bytes per stored chunk
	} `yaml:"store"`

	Transcode struct {
		FFmpegPath string `yaml:"ffmpeg_path"`
	} `yaml:"transcode"`

	Backup struct {
		Enabled        bool          `yaml:"enabled"`
		Directory      string        `yaml:"directory"`
		Interval       time.Duration `yaml:"interval"`
		RestoreOnStart bool          `yaml:"restore_on_start"`
	} `yaml:"backup"`

	Quality struct {
		LiveSampleInterval      time.Duration `yaml:"live_sample_interval"`
		RecordingSampleInterval time.Duration `yaml:"recording_sample_interval"`
	} `yaml:"quality"`

	WebRTC struct {
		ICEServers []ICEServer `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// ICEServer is one STUN/TURN endpoint handed to the WebRTC stack.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// ICEServerURLs flattens the configured ICE servers into the URL list
// the transport layer consumes.
func (c *Config) ICEServerURLs() []string {
	var urls []string
	for _, s := range c.WebRTC.ICEServers {
		urls = append(urls, s.URLs...)
	}
	return urls
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Signal.Path == "" {
		return fmt.Errorf("signal.path must not be empty")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= 0 {
		return fmt.Errorf("signal.pong_timeout must be > 0")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0")
	}
	if c.Auth.Username == "" || c.Auth.Password == "" {
		return fmt.Errorf("auth.username and auth.password must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Store.ChunkSize <= 0 {
		return fmt.Errorf("store.chunk_size must be > 0")
	}

	if c.Transcode.FFmpegPath == "" {
		return fmt.Errorf("transcode.ffmpeg_path must not be empty")
	}

	if c.Backup.Enabled {
		if c.Backup.Directory == "" {
			return fmt.Errorf("backup.directory must not be empty when backup.enabled=true")
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup.interval must be > 0 when backup.enabled=true")
		}
	}

	if c.Quality.LiveSampleInterval <= 0 {
		return fmt.Errorf("quality.live_sample_interval must be > 0")
	}
	if c.Quality.RecordingSampleInterval <= 0 {
		return fmt.Errorf("quality.recording_sample_interval must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":5001"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.Path = "/ws"
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.TokenTTL = 12 * time.Hour
	cfg.Auth.Username = "admin"
	cfg.Auth.Password = "admin"
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Store.ChunkSize = 255 * 1024

	cfg.Transcode.FFmpegPath = "ffmpeg"

	cfg.Backup.Enabled = false
	cfg.Backup.Directory = "archives"
	cfg.Backup.Interval = time.Hour
	cfg.Backup.RestoreOnStart = false

	cfg.Quality.LiveSampleInterval = 5 * time.Second
	cfg.Quality.RecordingSampleInterval = 10 * time.Second

	cfg.WebRTC.ICEServers = []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("STREAMCAST_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("STREAMCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("STREAMCAST_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if user := os.Getenv("STREAMCAST_AUTH_USER"); user != "" {
		c.Auth.Username = user
	}
	if pass := os.Getenv("STREAMCAST_AUTH_PASS"); pass != "" {
		c.Auth.Password = pass
	}
	if addr := os.Getenv("STREAMCAST_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if path := os.Getenv("STREAMCAST_FFMPEG_PATH"); path != "" {
		c.Transcode.FFmpegPath = path
	}
}
