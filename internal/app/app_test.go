package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

func demoConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{MaxFiles: 20},
		Provider: config.ProviderConfig{Type: "replicate"},
		Processing: config.ProcessingConfig{
			Concurrency:      2,
			MaxRetries:       0,
			InitialDelayMs:   1,
			Backoff:          2,
			SupportedFormats: []string{"jpg", "png"},
		},
		Storage:  config.StorageConfig{Type: "none"},
		Progress: config.ProgressConfig{Type: "memory"},
		Events:   config.EventsConfig{Type: "none"},
	}
}

func TestNewDemoPipeline(t *testing.T) {
	a, err := New(context.Background(), demoConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "demo", a.Provider.Name())
	assert.False(t, a.Storage.Enabled())

	resp, err := a.Usecase.Process(context.Background(), domain.ProcessRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, resp.DemoMode)
	assert.Len(t, resp.Results, 3)
}

func TestNewRedisProgress(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := demoConfig()
	cfg.Progress = config.ProgressConfig{Type: "redis", RedisAddr: mr.Addr()}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	_, err = a.Usecase.Process(context.Background(), domain.ProcessRequest{SessionID: "s1"})
	require.NoError(t, err)

	snap, err := a.Usecase.Progress(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Completed)
	assert.NoError(t, a.Close())
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := demoConfig()
	cfg.Provider = config.ProviderConfig{Type: "nope", APIToken: "t"}

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSetLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	SetLogLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	SetLogLevel("loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestCheckPublicBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		storage config.StorageConfig
		token   string
		wantErr bool
	}{
		{name: "localhost base", storage: config.StorageConfig{Type: "local", PublicBaseURL: "http://localhost:8080/uploads"}, token: "r8_x", wantErr: true},
		{name: "private ip base", storage: config.StorageConfig{Type: "local", PublicBaseURL: "http://192.168.1.5/uploads"}, token: "r8_x", wantErr: true},
		{name: "public base", storage: config.StorageConfig{Type: "local", PublicBaseURL: "https://img.example.com/uploads/"}, token: "r8_x"},
		{name: "no storage", storage: config.StorageConfig{Type: "none", PublicBaseURL: "http://localhost"}, token: "r8_x"},
		{name: "demo mode", storage: config.StorageConfig{Type: "local", PublicBaseURL: "http://localhost:8080/uploads"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := demoConfig()
			cfg.Storage = tt.storage
			cfg.Provider.APIToken = tt.token
			err := checkPublicBaseURL(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
