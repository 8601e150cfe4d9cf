package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrTooManyFiles    = errors.New("too many files")
	ErrInvalidFormat   = errors.New("invalid or unsupported image format")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrNoImages        = errors.New("no images to process")

	ErrInvalidGalleryURL        = errors.New("invalid gallery url")
	ErrUnsupportedGallery       = errors.New("unsupported gallery platform")
	ErrGalleryPasswordProtected = errors.New("gallery is password protected")
	ErrGalleryWrongPlatform     = errors.New("page is not a supported gallery")
	ErrGalleryNoImages          = errors.New("no images found in gallery")
	ErrGalleryFetch             = errors.New("failed to fetch gallery page")

	ErrProviderAuth        = errors.New("authentication failed")
	ErrProviderPermission  = errors.New("permission denied")
	ErrSourceFetch         = errors.New("could not fetch source image")
	ErrInvalidSourceURL    = errors.New("source url is not public")
	ErrSourceUnreachable   = errors.New("source image is not reachable")
	ErrNoOutputImage       = errors.New("provider returned no output image")
	ErrProviderUnavailable = errors.New("provider request failed")
	ErrStorageFailed       = errors.New("storage operation failed")
)

// IsGalleryEmpty reports whether err describes a gallery that yielded no images.
func IsGalleryEmpty(err error) bool {
	return errors.Is(err, ErrGalleryNoImages) ||
		errors.Is(err, ErrGalleryPasswordProtected) ||
		errors.Is(err, ErrGalleryWrongPlatform)
}
