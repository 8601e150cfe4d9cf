package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/helpers"
	"github.com/yokitheyo/wmremover/internal/worker"
)

const apiKeyPrefixLen = 4

type WatermarkUsecase struct {
	resolver *SourceResolver
	scraper  domain.GalleryScraper
	provider domain.WatermarkProvider
	store    domain.ProgressStore
	worker   *worker.BatchWorker
	cfg      *config.Config
}

func NewWatermarkUsecase(
	cfg *config.Config,
	resolver *SourceResolver,
	scraper domain.GalleryScraper,
	provider domain.WatermarkProvider,
	store domain.ProgressStore,
	worker *worker.BatchWorker,
) *WatermarkUsecase {
	return &WatermarkUsecase{
		resolver: resolver,
		scraper:  scraper,
		provider: provider,
		store:    store,
		worker:   worker,
		cfg:      cfg,
	}
}

// Process resolves the inputs, registers the session and runs the batch to
// the end. The batch is not cancelled when ctx is, so progress keeps moving
// for pollers after a client disconnects.
func (u *WatermarkUsecase) Process(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	demo := u.cfg.DemoMode()

	tasks, err := u.resolver.Resolve(ctx, req, demo)
	if err != nil {
		return nil, err
	}

	if err := u.store.Create(ctx, req.SessionID, len(tasks)); err != nil {
		zlog.Logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("failed to create session")
		return nil, fmt.Errorf("create session: %w", err)
	}

	zlog.Logger.Info().
		Str("session_id", req.SessionID).
		Int("uploads", len(req.Uploads)).
		Str("gallery_url", req.GalleryURL).
		Int("tasks", len(tasks)).
		Bool("demo_mode", demo).
		Msg("batch accepted")

	results := u.worker.Run(context.WithoutCancel(ctx), req.SessionID, tasks)

	return &domain.ProcessResponse{
		SessionID: req.SessionID,
		Results:   results,
		DemoMode:  demo,
	}, nil
}

func (u *WatermarkUsecase) Progress(ctx context.Context, sessionID string) (*domain.ProgressSnapshot, error) {
	return u.store.Get(ctx, sessionID)
}

func (u *WatermarkUsecase) ExtractGallery(ctx context.Context, galleryURL string) ([]domain.GalleryImage, error) {
	images, err := u.scraper.Extract(ctx, galleryURL)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("gallery_url", galleryURL).Msg("failed to extract gallery")
		return nil, err
	}
	zlog.Logger.Info().Str("gallery_url", galleryURL).Int("images", len(images)).Msg("gallery extracted")
	return images, nil
}

// Status describes the runtime setup. Only a short prefix of the credential is exposed.
func (u *WatermarkUsecase) Status() domain.ServiceStatus {
	token := u.cfg.Provider.APIToken
	return domain.ServiceStatus{
		Provider:      u.provider.Name(),
		HasAPIKey:     token != "",
		APIKeyPrefix:  helpers.Prefix(token, apiKeyPrefixLen),
		APIKeyLength:  len(token),
		DemoMode:      u.cfg.DemoMode(),
		Storage:       u.cfg.Storage.Type,
		ProgressStore: u.cfg.Progress.Type,
		Concurrency:   u.worker.Concurrency(),
		MaxRetries:    u.cfg.Processing.MaxRetries,
	}
}

func (u *WatermarkUsecase) TestProvider(ctx context.Context) error {
	if err := u.provider.Ping(ctx); err != nil {
		zlog.Logger.Warn().Err(err).Str("provider", u.provider.Name()).Msg("provider connection test failed")
		return err
	}
	zlog.Logger.Info().Str("provider", u.provider.Name()).Msg("provider connection test passed")
	return nil
}
