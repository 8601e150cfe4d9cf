package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

func newTestHTTPAPI(server *httptest.Server) *HTTPAPIClient {
	return NewHTTPAPIClient(config.ProviderConfig{APIToken: "key-1", BaseURL: server.URL + "/"}, server.Client())
}

func TestHTTPAPIRemoveWatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/remove-watermark", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-API-Key"))

		var req httpAPIRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://img.example.com/a.jpg", req.ImageURL)
		assert.Equal(t, "a.jpg", req.Filename)

		_, _ = w.Write([]byte(`{"result_url":"https://cdn.example.com/a-clean.jpg","job_id":"j-1"}`))
	}))
	defer srv.Close()

	res, err := newTestHTTPAPI(srv).RemoveWatermark(context.Background(), "https://img.example.com/a.jpg", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a-clean.jpg", res.ProcessedImageURL)
	assert.Equal(t, "j-1", res.JobID)
}

func TestHTTPAPIOutputList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":["https://cdn.example.com/x.jpg"]}`))
	}))
	defer srv.Close()

	res, err := newTestHTTPAPI(srv).RemoveWatermark(context.Background(), "https://img.example.com/a.jpg", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/x.jpg", res.ProcessedImageURL)
}

func TestHTTPAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"no output", http.StatusOK, `{"job_id":"j-2"}`, domain.ErrNoOutputImage},
		{"error field", http.StatusOK, `{"error":"unable to download source"}`, domain.ErrSourceFetch},
		{"auth", http.StatusUnauthorized, `{"message":"bad key"}`, domain.ErrProviderAuth},
		{"unavailable", http.StatusServiceUnavailable, `busy`, domain.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestHTTPAPI(srv).RemoveWatermark(context.Background(), "https://img.example.com/a.jpg", "a.jpg")
			require.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestHTTPAPIPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/account", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	assert.ErrorIs(t, newTestHTTPAPI(srv).Ping(context.Background()), domain.ErrProviderPermission)
}
