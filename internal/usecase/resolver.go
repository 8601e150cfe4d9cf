package usecase

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/helpers"
	"github.com/yokitheyo/wmremover/internal/infrastructure/processor"
)

// SourceResolver turns uploads and a gallery URL into the ordered task list of a batch.
type SourceResolver struct {
	storage        domain.StorageService
	scraper        domain.GalleryScraper
	normalizer     *processor.Normalizer
	maxFiles       int
	allowedFormats []string
	sampleFallback bool
}

func NewSourceResolver(
	storage domain.StorageService,
	scraper domain.GalleryScraper,
	normalizer *processor.Normalizer,
	maxFiles int,
	allowedFormats []string,
	sampleFallback bool,
) *SourceResolver {
	formats := make([]string, 0, len(allowedFormats))
	for _, f := range allowedFormats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		formats = append(formats, f)
	}
	return &SourceResolver{
		storage:        storage,
		scraper:        scraper,
		normalizer:     normalizer,
		maxFiles:       maxFiles,
		allowedFormats: formats,
		sampleFallback: sampleFallback,
	}
}

// Resolve returns uploads first, then gallery images. With no input at all
// the sample set is used when demo is set or the fallback is enabled.
func (r *SourceResolver) Resolve(ctx context.Context, req domain.ProcessRequest, demo bool) ([]domain.ImageTask, error) {
	if r.maxFiles > 0 && len(req.Uploads) > r.maxFiles {
		return nil, fmt.Errorf("%w: got %d, max %d", domain.ErrTooManyFiles, len(req.Uploads), r.maxFiles)
	}
	for _, up := range req.Uploads {
		if !r.isAllowedFormat(up.Filename) {
			return nil, fmt.Errorf("%w: %s (allowed: %s)", domain.ErrInvalidFormat, up.Filename, strings.Join(r.allowedFormats, ", "))
		}
	}

	tasks := make([]domain.ImageTask, 0, len(req.Uploads))
	for _, up := range req.Uploads {
		tasks = append(tasks, r.uploadTask(ctx, up))
	}

	galleryURL := strings.TrimSpace(req.GalleryURL)
	if galleryURL != "" && demo {
		zlog.Logger.Info().Str("gallery_url", galleryURL).Msg("demo mode, gallery is not scraped")
		galleryURL = ""
	}
	if galleryURL != "" {
		images, err := r.scraper.Extract(ctx, galleryURL)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("gallery_url", galleryURL).Msg("gallery extraction failed")
			return nil, err
		}
		for _, img := range images {
			tasks = append(tasks, domain.ImageTask{
				SourceURL: img.URL,
				Filename:  img.Filename,
				Origin:    domain.OriginGallery,
			})
		}
		return tasks, nil
	}

	if len(tasks) == 0 {
		if demo || r.sampleFallback {
			zlog.Logger.Info().Bool("demo", demo).Msg("no input given, using sample images")
			return domain.SampleTasks(), nil
		}
		return nil, domain.ErrNoImages
	}
	return tasks, nil
}

// uploadTask never fails: when the upload cannot be stored the task carries
// the bytes inline and the provider rejects it later.
func (r *SourceResolver) uploadTask(ctx context.Context, up domain.Upload) domain.ImageTask {
	img, err := r.normalizer.Normalize(up.Data)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("filename", up.Filename).Msg("failed to normalize upload, storing as is")
		img = processor.Passthrough(up.Data)
	}

	task := domain.ImageTask{Filename: up.Filename, Origin: domain.OriginUploaded}

	if r.storage != nil && r.storage.Enabled() {
		name := uuid.NewString() + img.Ext
		url, err := r.storage.SaveOriginal(ctx, name, bytes.NewReader(img.Data))
		if err == nil {
			task.SourceURL = url
			zlog.Logger.Debug().Str("filename", up.Filename).Str("url", url).Msg("upload stored")
			return task
		}
		zlog.Logger.Error().Err(err).Str("filename", up.Filename).Msg("failed to save upload, falling back to inline data")
	}

	task.SourceURL = helpers.DataURI(img.MIMEType, img.Data)
	return task
}

func (r *SourceResolver) isAllowedFormat(filename string) bool {
	return slices.Contains(r.allowedFormats, strings.ToLower(filepath.Ext(filename)))
}
