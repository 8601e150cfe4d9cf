package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/yokitheyo/wmremover/internal/domain"
)

// Platform isolates everything specific to one gallery host.
type Platform interface {
	Name() string
	// Accepts reports whether u is a gallery page on this platform.
	Accepts(u *url.URL) bool
	// Normalize maps a candidate to its full-size and thumbnail URLs.
	// ok is false for anything that is not an image of this platform.
	Normalize(raw string) (full, thumb string, ok bool)
	Strategies() []Strategy
	// Diagnose explains an empty result from the page text.
	Diagnose(page string) error
}

const pixiesetImageHost = "images.pixieset.com"

var (
	pixiesetSize    = regexp.MustCompile(`-(?:thumb|small|medium|large|xlarge|xxlarge)(\.(?i:jpe?g|png|webp))$`)
	pixiesetExt     = regexp.MustCompile(`(?i)\.(?:jpe?g|png|webp)$`)
	pixiesetLiteral = regexp.MustCompile(`(?:https?:)?//images\.pixieset\.com/[^"'\s<>()\\]+?\.(?i:jpe?g|png|webp)`)
)

type Pixieset struct{}

func (Pixieset) Name() string { return "pixieset" }

func (Pixieset) Accepts(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == pixiesetImageHost {
		return false
	}
	return host == "pixieset.com" || strings.HasSuffix(host, ".pixieset.com")
}

func (Pixieset) Normalize(raw string) (string, string, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, `\/`, "/"))
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Hostname(), pixiesetImageHost) {
		return "", "", false
	}
	if !pixiesetExt.MatchString(u.Path) {
		return "", "", false
	}

	u.Scheme = "https"
	u.RawQuery = ""
	u.Fragment = ""

	if !pixiesetSize.MatchString(u.Path) {
		return u.String(), "", true
	}

	path := u.Path
	u.Path = pixiesetSize.ReplaceAllString(path, "-xxlarge$1")
	full := u.String()
	u.Path = pixiesetSize.ReplaceAllString(path, "-medium$1")
	return full, u.String(), true
}

func (Pixieset) Strategies() []Strategy {
	return []Strategy{
		LazyAttrStrategy{Attrs: []string{"data-src", "data-original", "data-lazy", "data-srcset", "data-bg", "data-image"}},
		ImageTagStrategy{},
		StructuredDataStrategy{},
		ScriptPatternStrategy{Pattern: pixiesetLiteral},
	}
}

func (Pixieset) Diagnose(page string) error {
	lower := strings.ToLower(page)
	switch {
	case strings.Contains(lower, "password") &&
		(strings.Contains(lower, "protected") || strings.Contains(lower, "enter") || strings.Contains(lower, "private")):
		return domain.ErrGalleryPasswordProtected
	case !strings.Contains(lower, "pixieset"):
		return domain.ErrGalleryWrongPlatform
	default:
		return domain.ErrGalleryNoImages
	}
}
