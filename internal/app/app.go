// Package app wires the configured components into a WatermarkUsecase.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/infrastructure/events"
	"github.com/yokitheyo/wmremover/internal/infrastructure/processor"
	"github.com/yokitheyo/wmremover/internal/infrastructure/progress"
	"github.com/yokitheyo/wmremover/internal/infrastructure/provider"
	"github.com/yokitheyo/wmremover/internal/infrastructure/scraper"
	"github.com/yokitheyo/wmremover/internal/infrastructure/storage"
	"github.com/yokitheyo/wmremover/internal/retry"
	"github.com/yokitheyo/wmremover/internal/usecase"
	"github.com/yokitheyo/wmremover/internal/worker"
)

type App struct {
	Config   *config.Config
	Usecase  *usecase.WatermarkUsecase
	Storage  domain.StorageService
	Provider domain.WatermarkProvider

	closers []func() error
}

// SetLogLevel applies logging.level globally. Unknown levels keep info.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		zlog.Logger.Warn().Str("level", level).Msg("Unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := storage.New(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.Storage = store

	p, err := provider.New(ctx, cfg, store)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}
	a.Provider = p
	if err := checkPublicBaseURL(cfg); err != nil {
		zlog.Logger.Warn().Err(err).Str("public_base_url", cfg.Storage.PublicBaseURL).
			Msg("uploaded images will not be reachable by the provider, set storage.public_base_url to a public address")
	}

	progressStore, closeProgress, err := progress.New(ctx, cfg.Progress)
	if err != nil {
		return nil, fmt.Errorf("init progress store: %w", err)
	}
	a.closers = append(a.closers, closeProgress)

	publisher, err := events.New(cfg.Events)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init events: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)

	galleryScraper := scraper.New(cfg.Gallery, &http.Client{Timeout: cfg.Gallery.Timeout()}, nil)

	strategy := retry.NewStrategy(cfg.Processing.MaxRetries, cfg.Processing.InitialDelay(), cfg.Processing.Backoff)
	batchWorker := worker.NewBatchWorker(p, progressStore, publisher, strategy, cfg.Processing.Concurrency)

	resolver := usecase.NewSourceResolver(
		store,
		galleryScraper,
		processor.NewNormalizer(cfg.Normalize),
		cfg.Server.MaxFiles,
		cfg.Processing.SupportedFormats,
		cfg.Processing.SampleFallback,
	)

	a.Usecase = usecase.NewWatermarkUsecase(cfg, resolver, galleryScraper, p, progressStore, batchWorker)

	zlog.Logger.Info().
		Str("provider", p.Name()).
		Bool("demo_mode", cfg.DemoMode()).
		Int("concurrency", batchWorker.Concurrency()).
		Int("attempts", strategy.Attempts).
		Msg("Application components initialized")

	return a, nil
}

// Close releases the owned connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// checkPublicBaseURL reports whether stored uploads get URLs the remote
// provider can fetch. Demo mode and s3 without an explicit base are skipped.
func checkPublicBaseURL(cfg *config.Config) error {
	if cfg.DemoMode() || cfg.Storage.Type == "none" || cfg.Storage.PublicBaseURL == "" {
		return nil
	}
	return provider.ValidateSourceURL(strings.TrimRight(cfg.Storage.PublicBaseURL, "/") + "/original/sample.jpg")
}
