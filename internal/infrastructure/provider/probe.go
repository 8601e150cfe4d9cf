package provider

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/domain"
)

var placeholderMarkers = []string{"placeholder", "via.placeholder", "example.invalid"}

// ValidateSourceURL rejects references a remote provider cannot fetch:
// relative paths, inline data, browser blobs, loopback and private hosts.
func ValidateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)

	switch {
	case raw == "":
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "empty url"}
	case strings.HasPrefix(raw, "/"):
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "local path " + truncate(raw, 64)}
	case strings.HasPrefix(lower, "data:"):
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "inline data uri, storage upload did not succeed"}
	case strings.HasPrefix(lower, "blob:"), strings.HasPrefix(lower, "file:"):
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "browser-local reference"}
	}
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "placeholder url"}
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "unsupported scheme " + u.Scheme}
	}

	host := u.Hostname()
	if host == "" || strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".local") {
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "local host " + host}
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()) {
		return &Error{Kind: domain.ErrInvalidSourceURL, Detail: "private address " + host}
	}
	return nil
}

// Prober checks that a source URL answers before it is handed to a provider.
type Prober struct {
	client *http.Client
}

func NewProber(client *http.Client) *Prober {
	return &Prober{client: client}
}

// Probe sends HEAD and falls back to a one-byte ranged GET for servers that
// do not implement HEAD.
func (p *Prober) Probe(ctx context.Context, imageURL string) error {
	status, err := p.do(ctx, http.MethodHead, imageURL)
	if err != nil || status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = p.do(ctx, http.MethodGet, imageURL)
	}
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("url", imageURL).Msg("source probe failed")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: domain.ErrSourceUnreachable, Detail: err.Error(), Temporary: true}
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return &Error{Kind: domain.ErrSourceUnreachable, StatusCode: status, Temporary: true}
	default:
		zlog.Logger.Warn().Int("status", status).Str("url", imageURL).Msg("source probe rejected")
		return &Error{Kind: domain.ErrSourceUnreachable, StatusCode: status}
	}
}

func (p *Prober) do(ctx context.Context, method, imageURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, imageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	return resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
