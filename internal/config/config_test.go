package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ShutdownTimeoutSec: 5,
			ReadTimeoutSec:     10,
			WriteTimeoutSec:    10,
			MaxUploadSizeMB:    10,
		},
		Processing: ProcessingConfig{SupportedFormats: []string{"jpg"}},
		Logging:    LoggingConfig{Level: "info"},
	}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 20, cfg.Server.MaxFiles)
	assert.Equal(t, "replicate", cfg.Provider.Type)
	assert.Equal(t, 300, cfg.Provider.MaxPollSec)
	assert.Equal(t, 2, cfg.Processing.Concurrency)
	assert.Equal(t, 2.0, cfg.Processing.Backoff)
	assert.Equal(t, 20, cfg.Gallery.MaxImages)
	assert.Equal(t, "none", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.Progress.Type)
	assert.Equal(t, "none", cfg.Events.Type)
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown provider", func(c *Config) { c.Provider.Type = "dalle" }},
		{"httpapi without base url", func(c *Config) {
			c.Provider.Type = "httpapi"
			c.Provider.APIToken = "key"
		}},
		{"negative retries", func(c *Config) { c.Processing.MaxRetries = -1 }},
		{"no formats", func(c *Config) { c.Processing.SupportedFormats = nil }},
		{"local without path", func(c *Config) {
			c.Storage.Type = "local"
			c.Storage.PublicBaseURL = "http://localhost/uploads"
		}},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3Endpoint = "minio:9000"
		}},
		{"redis without addr", func(c *Config) { c.Progress.Type = "redis" }},
		{"kafka without topic", func(c *Config) {
			c.Events.Type = "kafka"
			c.Events.Brokers = []string{"kafka:9092"}
		}},
		{"nats without url", func(c *Config) { c.Events.Type = "nats" }},
		{"no log level", func(c *Config) { c.Logging.Level = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestDemoMode(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.DemoMode(), "missing token implies demo mode")

	cfg.Provider.APIToken = "r8_token"
	assert.False(t, cfg.DemoMode())

	cfg.Demo.Enabled = true
	assert.True(t, cfg.DemoMode())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PROVIDER_API_TOKEN", "")
	t.Setenv("REPLICATE_API_TOKEN", " r8_abc ")
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("STORAGE_WRITE_TOKEN", "write-me")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := validConfig()
	applyEnv(cfg)

	assert.Equal(t, "r8_abc", cfg.Provider.APIToken)
	assert.True(t, cfg.Demo.Enabled)
	assert.Equal(t, "write-me", cfg.Storage.WriteToken)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `server:
  addr: ":9090"
  shutdown_timeout_sec: 5
  read_timeout_sec: 10
  write_timeout_sec: 10
  max_upload_size_mb: 5
processing:
  concurrency: 3
  supported_formats: ["jpg", "png"]
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Processing.Concurrency)
	assert.Equal(t, []string{"jpg", "png"}, cfg.Processing.SupportedFormats)
	assert.Equal(t, "memory", cfg.Progress.Type)
}
