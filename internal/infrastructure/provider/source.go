package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yokitheyo/wmremover/internal/domain"
)

const maxSourceBytes = 25 << 20

// loadSource returns the bytes and mime type behind an http(s) or data: URL.
func loadSource(ctx context.Context, client *http.Client, src string) ([]byte, string, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURI(src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", &Error{Kind: domain.ErrInvalidSourceURL, Detail: err.Error()}
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", &Error{Kind: domain.ErrSourceUnreachable, Detail: err.Error(), Temporary: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &Error{
			Kind:       domain.ErrSourceUnreachable,
			StatusCode: resp.StatusCode,
			Temporary:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, "", &Error{Kind: domain.ErrSourceUnreachable, Detail: err.Error(), Temporary: true}
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func decodeDataURI(src string) ([]byte, string, error) {
	comma := strings.Index(src, ",")
	if comma < 0 {
		return nil, "", &Error{Kind: domain.ErrInvalidSourceURL, Detail: "malformed data uri"}
	}
	meta := strings.TrimPrefix(src[:comma], "data:")
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", &Error{Kind: domain.ErrInvalidSourceURL, Detail: "data uri is not base64"}
	}
	data, err := base64.StdEncoding.DecodeString(src[comma+1:])
	if err != nil {
		return nil, "", &Error{Kind: domain.ErrInvalidSourceURL, Detail: fmt.Sprintf("decode data uri: %v", err)}
	}
	return data, strings.TrimSuffix(meta, ";base64"), nil
}
