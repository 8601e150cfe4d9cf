package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yokitheyo/wmremover/internal/domain"
)

// Error is a classified provider failure. Kind is one of the domain sentinels,
// so callers can match with errors.Is.
type Error struct {
	Kind       error
	StatusCode int
	Detail     string
	Temporary  bool
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// IsRetryable reports whether another attempt may succeed. Unclassified
// errors are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Temporary
	}
	return true
}

var fetchMarkers = []string{
	"fetch",
	"download",
	"could not load",
	"cannot load",
	"failed to load",
	"retrieve",
	"unable to open",
}

func mentionsFetch(s string) bool {
	s = strings.ToLower(s)
	for _, m := range fetchMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// classifyStatus maps a non-success provider response to an Error.
func classifyStatus(status int, body []byte) *Error {
	detail := errorDetail(body)

	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: domain.ErrProviderAuth, StatusCode: status, Detail: detail}
	case status == http.StatusForbidden:
		return &Error{Kind: domain.ErrProviderPermission, StatusCode: status, Detail: detail}
	case (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) && mentionsFetch(detail):
		return &Error{Kind: domain.ErrSourceFetch, StatusCode: status, Detail: detail}
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return &Error{Kind: domain.ErrProviderUnavailable, StatusCode: status, Detail: detail, Temporary: true}
	default:
		return &Error{Kind: domain.ErrProviderUnavailable, StatusCode: status, Detail: detail}
	}
}

// errorDetail pulls a human readable message out of a provider error body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Error   any    `json:"error"`
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Detail != "":
			return payload.Detail
		case payload.Message != "":
			return payload.Message
		case payload.Error != nil:
			if s, ok := payload.Error.(string); ok {
				return s
			}
			if m, ok := payload.Error.(map[string]any); ok {
				if s, ok := m["message"].(string); ok {
					return s
				}
			}
		case payload.Title != "":
			return payload.Title
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func networkError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &Error{Kind: domain.ErrProviderUnavailable, Detail: err.Error(), Temporary: true}
}
