// Package provider holds the watermark removal backends.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

// New picks the backend for cfg. Demo mode, explicit or implied by a missing
// token, always yields the DemoProvider.
func New(ctx context.Context, cfg *config.Config, storage domain.StorageService) (domain.WatermarkProvider, error) {
	if cfg.DemoMode() {
		zlog.Logger.Info().
			Bool("demo_enabled", cfg.Demo.Enabled).
			Bool("has_token", cfg.Provider.APIToken != "").
			Msg("Initializing demo provider")
		return NewDemoProvider(time.Duration(cfg.Demo.DelayMs) * time.Millisecond), nil
	}

	httpClient := &http.Client{Timeout: cfg.Provider.Timeout()}

	switch cfg.Provider.Type {
	case "replicate":
		zlog.Logger.Info().Str("model", cfg.Provider.Model).Msg("Initializing replicate provider")
		return NewReplicateClient(cfg.Provider, httpClient), nil
	case "httpapi":
		zlog.Logger.Info().Str("base_url", cfg.Provider.BaseURL).Msg("Initializing http api provider")
		return NewHTTPAPIClient(cfg.Provider, httpClient), nil
	case "gemini":
		zlog.Logger.Info().Str("model", cfg.Provider.Model).Msg("Initializing gemini provider")
		return NewGeminiClient(ctx, cfg.Provider, httpClient, storage)
	default:
		zlog.Logger.Error().Str("type", cfg.Provider.Type).Msg("Unsupported provider type")
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider.Type)
	}
}
