package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
)

// localStorage writes under basePath; the HTTP server exposes basePath at
// publicBaseURL.
type localStorage struct {
	basePath      string
	originalDir   string
	processedDir  string
	publicBaseURL string
}

func NewLocalStorage(cfg *config.StorageConfig) (Storage, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("PublicBaseURL is empty, set storage.public_base_url in config or env")
	}
	if cfg.OriginalDir == "" {
		cfg.OriginalDir = "original"
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = "processed"
	}

	storage := &localStorage{
		basePath:      cfg.LocalPath,
		originalDir:   cfg.OriginalDir,
		processedDir:  cfg.ProcessedDir,
		publicBaseURL: cfg.PublicBaseURL,
	}

	originalPath := filepath.Join(storage.basePath, storage.originalDir)
	processedPath := filepath.Join(storage.basePath, storage.processedDir)

	if err := os.MkdirAll(originalPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create original directory: %w", err)
	}
	if err := os.MkdirAll(processedPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create processed directory: %w", err)
	}

	return storage, nil
}

func (s *localStorage) Enabled() bool { return true }

func (s *localStorage) SaveOriginal(ctx context.Context, filename string, reader io.Reader) (string, error) {
	return s.saveFile(ctx, s.originalDir, filename, reader)
}

func (s *localStorage) SaveProcessed(ctx context.Context, filename string, reader io.Reader) (string, error) {
	return s.saveFile(ctx, s.processedDir, filename, reader)
}

func (s *localStorage) saveFile(ctx context.Context, dir, filename string, reader io.Reader) (string, error) {
	if reader == nil {
		zlog.Logger.Error().Str("filename", filename).Msg("reader is nil")
		return "", fmt.Errorf("reader is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	filename = filepath.Base(filename)
	fullPath := filepath.Join(s.basePath, dir, filename)

	file, err := os.Create(fullPath)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create file")
		return "", fmt.Errorf("create file %s: %w", fullPath, err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to write file")
		return "", fmt.Errorf("write file %s: %w", fullPath, err)
	}
	if written == 0 {
		zlog.Logger.Error().Str("path", fullPath).Msg("no bytes written to file")
		return "", fmt.Errorf("no bytes written to file %s", fullPath)
	}

	url := publicURL(s.publicBaseURL, path.Join(dir, filename))
	zlog.Logger.Info().
		Str("url", url).
		Int64("bytes", written).
		Msg("file saved successfully")

	return url, nil
}
