// Package scraper extracts image URLs from public photo gallery pages.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
	"golang.org/x/net/html"
)

const maxPageBytes = 8 << 20

const defaultUserAgent = "Mozilla/5.0 (compatible; wmremover/1.0)"

type Scraper struct {
	client    *http.Client
	platform  Platform
	maxImages int
	userAgent string
}

func New(cfg config.GalleryConfig, client *http.Client, platform Platform) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}
	if platform == nil {
		platform = Pixieset{}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	maxImages := cfg.MaxImages
	if maxImages <= 0 {
		maxImages = 20
	}
	return &Scraper{
		client:    client,
		platform:  platform,
		maxImages: maxImages,
		userAgent: ua,
	}
}

// Extract fetches galleryURL and returns at most maxImages unique images in
// discovery order.
func (s *Scraper) Extract(ctx context.Context, galleryURL string) ([]domain.GalleryImage, error) {
	u, err := url.Parse(strings.TrimSpace(galleryURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidGalleryURL, galleryURL)
	}
	if !s.platform.Accepts(u) {
		return nil, fmt.Errorf("%w: only %s galleries are supported", domain.ErrUnsupportedGallery, s.platform.Name())
	}

	page, err := s.fetch(ctx, u.String())
	if err != nil {
		zlog.Logger.Error().Err(err).Str("url", u.String()).Msg("failed to fetch gallery")
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", domain.ErrGalleryFetch, err)
	}

	images := s.collect(doc)
	if len(images) == 0 {
		err := s.platform.Diagnose(page)
		zlog.Logger.Warn().Err(err).Str("url", u.String()).Msg("no images extracted from gallery")
		return nil, err
	}

	zlog.Logger.Info().
		Str("url", u.String()).
		Int("images", len(images)).
		Msg("gallery extracted")
	return images, nil
}

func (s *Scraper) collect(doc *html.Node) []domain.GalleryImage {
	seen := make(map[string]struct{})
	images := make([]domain.GalleryImage, 0, s.maxImages)

	for _, strategy := range s.platform.Strategies() {
		found := 0
		for _, candidate := range strategy.Extract(doc) {
			if len(images) >= s.maxImages {
				return images
			}
			full, thumb, ok := s.platform.Normalize(candidate)
			if !ok {
				continue
			}
			if _, dup := seen[full]; dup {
				continue
			}
			seen[full] = struct{}{}
			found++
			images = append(images, domain.GalleryImage{
				URL:       full,
				Filename:  fmt.Sprintf("%s_%d.jpg", s.platform.Name(), len(images)+1),
				Thumbnail: thumb,
			})
		}
		zlog.Logger.Debug().Str("strategy", strategy.Name()).Int("new", found).Msg("strategy finished")
	}
	return images
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidGalleryURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGalleryFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: status %d", domain.ErrGalleryNoImages, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrGalleryFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", domain.ErrGalleryFetch, err)
	}
	return string(body), nil
}
