package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

// Storage persists image bytes and hands back a URL the provider can fetch.
type Storage = domain.StorageService

func New(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "none":
		zlog.Logger.Info().Msg("Object storage disabled, uploads will be sent inline")
		return Disabled{}, nil
	case "local":
		zlog.Logger.Info().Msg("Initializing local storage")
		return NewLocalStorage(cfg)
	case "s3":
		zlog.Logger.Info().Msg("Initializing S3 storage")
		return NewS3Storage(cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported storage type, use 'none', 'local' or 's3'")
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Disabled is used when no public storage is configured.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) SaveOriginal(context.Context, string, io.Reader) (string, error) {
	return "", fmt.Errorf("%w: storage is not configured", domain.ErrStorageFailed)
}

func (Disabled) SaveProcessed(context.Context, string, io.Reader) (string, error) {
	return "", fmt.Errorf("%w: storage is not configured", domain.ErrStorageFailed)
}

func publicURL(base, objectPath string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(objectPath, "/")
}
