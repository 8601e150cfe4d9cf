package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/helpers"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Demo       DemoConfig       `mapstructure:"demo"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Normalize  NormalizeConfig  `mapstructure:"normalize"`
	Gallery    GalleryConfig    `mapstructure:"gallery"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Events     EventsConfig     `mapstructure:"events"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	GinMode            string `mapstructure:"gin_mode"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
	MaxUploadSizeMB    int    `mapstructure:"max_upload_size_mb"`
	MaxFiles           int    `mapstructure:"max_files"`
}

// ProviderConfig selects the watermark removal backend.
// Type is one of replicate, gemini, httpapi.
type ProviderConfig struct {
	Type       string `mapstructure:"type"`
	APIToken   string `mapstructure:"api_token"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Version    string `mapstructure:"version"`
	Prompt     string `mapstructure:"prompt"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	PollMs     int    `mapstructure:"poll_ms"`
	MaxPollSec int    `mapstructure:"max_poll_sec"`
	ProbeSkip  bool   `mapstructure:"probe_skip"`
}

type DemoConfig struct {
	Enabled bool `mapstructure:"enabled"`
	DelayMs int  `mapstructure:"delay_ms"`
}

type ProcessingConfig struct {
	Concurrency      int      `mapstructure:"concurrency"`
	MaxRetries       int      `mapstructure:"max_retries"`
	InitialDelayMs   int      `mapstructure:"initial_delay_ms"`
	Backoff          float64  `mapstructure:"backoff"`
	SampleFallback   bool     `mapstructure:"sample_fallback"`
	SupportedFormats []string `mapstructure:"supported_formats"`
}

type NormalizeConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxWidth      int  `mapstructure:"max_width"`
	MaxHeight     int  `mapstructure:"max_height"`
	OutputQuality int  `mapstructure:"output_quality"`
}

type GalleryConfig struct {
	MaxImages  int    `mapstructure:"max_images"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	UserAgent  string `mapstructure:"user_agent"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	OriginalDir   string `mapstructure:"original_dir"`
	ProcessedDir  string `mapstructure:"processed_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	WriteToken    string `mapstructure:"write_token"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

type ProgressConfig struct {
	Type          string `mapstructure:"type"`
	TTLMin        int    `mapstructure:"ttl_min"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`

	ConnectRetries       int `mapstructure:"connect_retries"`
	ConnectRetryDelaySec int `mapstructure:"connect_retry_delay_sec"`
}

type EventsConfig struct {
	Type    string   `mapstructure:"type"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	NatsURL string   `mapstructure:"nats_url"`
	Subject string   `mapstructure:"subject"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DemoMode reports whether external calls must be bypassed.
func (c *Config) DemoMode() bool {
	return c.Demo.Enabled || c.Provider.APIToken == ""
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

func (p ProcessingConfig) InitialDelay() time.Duration {
	return time.Duration(p.InitialDelayMs) * time.Millisecond
}

func (g GalleryConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSec) * time.Second
}

func (p ProgressConfig) TTL() time.Duration {
	return time.Duration(p.TTLMin) * time.Minute
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnv(appConfig)
	applyDefaults(appConfig)

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("provider", appConfig.Provider.Type).
		Bool("demo_mode", appConfig.DemoMode()).
		Str("storage", appConfig.Storage.Type).
		Str("progress", appConfig.Progress.Type).
		Str("events", appConfig.Events.Type).
		Int("concurrency", appConfig.Processing.Concurrency).
		Int("max_retries", appConfig.Processing.MaxRetries).
		Msg("Config loaded successfully via wbf")

	return appConfig, nil
}

// applyEnv maps the well-known deployment variables onto the config.
// They win over config.yaml so that secrets never have to live in it.
func applyEnv(cfg *Config) {
	for _, key := range []string{"PROVIDER_API_TOKEN", "REPLICATE_API_TOKEN", "GEMINI_API_KEY"} {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			cfg.Provider.APIToken = strings.TrimSpace(v)
			break
		}
	}
	if v, ok := os.LookupEnv("DEMO_MODE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Demo.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("STORAGE_WRITE_TOKEN"); ok {
		cfg.Storage.WriteToken = v
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Events.Brokers = helpers.SplitAndTrim(v, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.MaxFiles <= 0 {
		cfg.Server.MaxFiles = 20
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = "release"
	}
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "replicate"
	}
	if cfg.Provider.TimeoutSec <= 0 {
		cfg.Provider.TimeoutSec = 60
	}
	if cfg.Provider.MaxPollSec <= 0 {
		cfg.Provider.MaxPollSec = 300
	}
	if cfg.Processing.Concurrency <= 0 {
		cfg.Processing.Concurrency = 2
	}
	if cfg.Processing.Backoff < 1 {
		cfg.Processing.Backoff = 2
	}
	if cfg.Processing.InitialDelayMs <= 0 {
		cfg.Processing.InitialDelayMs = 1000
	}
	if cfg.Gallery.MaxImages <= 0 {
		cfg.Gallery.MaxImages = 20
	}
	if cfg.Gallery.TimeoutSec <= 0 {
		cfg.Gallery.TimeoutSec = 30
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "none"
	}
	if cfg.Progress.Type == "" {
		cfg.Progress.Type = "memory"
	}
	if cfg.Events.Type == "" {
		cfg.Events.Type = "none"
	}
}

func validateConfig(cfg *Config) error {
	// Server
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}
	if cfg.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("server.max_upload_size_mb must be positive")
	}

	// Provider
	switch cfg.Provider.Type {
	case "replicate", "gemini", "httpapi":
	default:
		return fmt.Errorf("provider.type must be 'replicate', 'gemini' or 'httpapi'")
	}
	if cfg.Provider.Type == "httpapi" && cfg.Provider.BaseURL == "" && !cfg.DemoMode() {
		return fmt.Errorf("provider.base_url is required for httpapi provider")
	}

	// Processing
	if cfg.Processing.MaxRetries < 0 {
		return fmt.Errorf("processing.max_retries must be non-negative")
	}
	if len(cfg.Processing.SupportedFormats) == 0 {
		return fmt.Errorf("processing.supported_formats must contain at least one format")
	}

	// Storage
	switch cfg.Storage.Type {
	case "none":
	case "local":
		if cfg.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for local storage")
		}
		if cfg.Storage.PublicBaseURL == "" {
			return fmt.Errorf("storage.public_base_url is required for local storage")
		}
	case "s3":
		if cfg.Storage.S3Endpoint == "" {
			return fmt.Errorf("storage.s3_endpoint is required for s3 storage")
		}
		if cfg.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for s3 storage")
		}
		if cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
			return fmt.Errorf("storage.s3_access_key and storage.s3_secret_key are required for s3 storage")
		}
	default:
		return fmt.Errorf("storage.type must be 'none', 'local' or 's3'")
	}

	// Progress
	switch cfg.Progress.Type {
	case "memory":
	case "redis":
		if cfg.Progress.RedisAddr == "" {
			return fmt.Errorf("progress.redis_addr is required for redis progress store")
		}
	default:
		return fmt.Errorf("progress.type must be 'memory' or 'redis'")
	}

	// Events
	switch cfg.Events.Type {
	case "none":
	case "kafka":
		if len(cfg.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers must contain at least one broker")
		}
		if cfg.Events.Topic == "" {
			return fmt.Errorf("events.topic is required")
		}
	case "nats":
		if cfg.Events.NatsURL == "" {
			return fmt.Errorf("events.nats_url is required")
		}
		if cfg.Events.Subject == "" {
			return fmt.Errorf("events.subject is required")
		}
	default:
		return fmt.Errorf("events.type must be 'none', 'kafka' or 'nats'")
	}

	if cfg.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}

	return nil
}
