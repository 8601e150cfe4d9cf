package processor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
	_ "golang.org/x/image/webp"
)

// Image is an encoded upload ready for storage.
type Image struct {
	Data     []byte
	MIMEType string
	Ext      string
	Width    int
	Height   int
}

// Normalizer prepares uploads for the provider: EXIF orientation applied,
// bounded dimensions, JPEG output.
type Normalizer struct {
	cfg config.NormalizeConfig
}

func NewNormalizer(cfg config.NormalizeConfig) *Normalizer {
	if cfg.MaxWidth <= 0 || cfg.MaxHeight <= 0 {
		zlog.Logger.Warn().
			Int("max_width", cfg.MaxWidth).
			Int("max_height", cfg.MaxHeight).
			Msg("Invalid normalize dimensions, using defaults")
		cfg.MaxWidth = 4096
		cfg.MaxHeight = 4096
	}
	if cfg.OutputQuality <= 0 || cfg.OutputQuality > 100 {
		cfg.OutputQuality = 92
	}
	return &Normalizer{cfg: cfg}
}

// Passthrough wraps raw bytes without decoding them.
func Passthrough(data []byte) *Image {
	mime := http.DetectContentType(data)
	return &Image{Data: data, MIMEType: mime, Ext: extFor(mime)}
}

// Normalize decodes data and re-encodes it. A decode failure is returned as
// an error wrapping domain.ErrInvalidFormat so the caller can keep the raw bytes.
func (n *Normalizer) Normalize(data []byte) (*Image, error) {
	if !n.cfg.Enabled {
		return Passthrough(data), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrInvalidFormat, err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("%w: decoded image is empty", domain.ErrInvalidFormat)
	}

	if img.Bounds().Dx() > n.cfg.MaxWidth || img.Bounds().Dy() > n.cfg.MaxHeight {
		resized := imaging.Fit(img, n.cfg.MaxWidth, n.cfg.MaxHeight, imaging.Lanczos)
		zlog.Logger.Debug().
			Int("original_width", img.Bounds().Dx()).
			Int("original_height", img.Bounds().Dy()).
			Int("resized_width", resized.Bounds().Dx()).
			Int("resized_height", resized.Bounds().Dy()).
			Msg("upload resized")
		img = resized
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.cfg.OutputQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return &Image{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Ext:      ".jpg",
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}, nil
}

func extFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}
