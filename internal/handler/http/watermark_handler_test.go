package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/dto"
)

type mockService struct {
	processFunc  func(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error)
	progressFunc func(ctx context.Context, sessionID string) (*domain.ProgressSnapshot, error)
	extractFunc  func(ctx context.Context, galleryURL string) ([]domain.GalleryImage, error)
	testErr      error
}

func (m *mockService) Process(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	if m.processFunc != nil {
		return m.processFunc(ctx, req)
	}
	return &domain.ProcessResponse{SessionID: req.SessionID}, nil
}

func (m *mockService) Progress(ctx context.Context, sessionID string) (*domain.ProgressSnapshot, error) {
	if m.progressFunc != nil {
		return m.progressFunc(ctx, sessionID)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockService) ExtractGallery(ctx context.Context, galleryURL string) ([]domain.GalleryImage, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, galleryURL)
	}
	return nil, domain.ErrGalleryNoImages
}

func (m *mockService) Status() domain.ServiceStatus {
	return domain.ServiceStatus{Provider: "replicate", HasAPIKey: true, APIKeyPrefix: "r8_a...", APIKeyLength: 40}
}

func (m *mockService) TestProvider(context.Context) error { return m.testErr }

func newTestEngine(svc domain.WatermarkService) *ginext.Engine {
	engine := ginext.New("test")
	NewWatermarkHandler(svc, 1, 20).RegisterRoutes(engine)
	return engine
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, name := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestProcess_Success(t *testing.T) {
	var got domain.ProcessRequest
	svc := &mockService{processFunc: func(_ context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
		got = req
		return &domain.ProcessResponse{
			SessionID: req.SessionID,
			Results: []domain.ProcessingResult{
				{OriginalURL: "https://a/1.jpg", ProcessedURL: "https://b/1.jpg", Filename: "a.jpg", Status: domain.ResultSuccess},
			},
		}, nil
	}}

	body, ct := multipartBody(t,
		map[string]string{"sessionId": "s1", "fileCount": "2", "galleryUrl": " https://jane.pixieset.com/x/ "},
		map[string]string{"file_0": "a.jpg", "file_1": "b.png"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newTestEngine(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "https://jane.pixieset.com/x/", got.GalleryURL)
	require.Len(t, got.Uploads, 2)
	assert.Equal(t, "a.jpg", got.Uploads[0].Filename)
	assert.Equal(t, "b.png", got.Uploads[1].Filename)
	assert.NotEmpty(t, got.Uploads[0].Data)

	var resp dto.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.ResultSuccess, resp.Results[0].Status)
	assert.NotContains(t, rec.Body.String(), "demoMode")
}

func TestProcess_DemoModeFlag(t *testing.T) {
	svc := &mockService{processFunc: func(_ context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
		return &domain.ProcessResponse{SessionID: req.SessionID, DemoMode: true}, nil
	}}
	body, ct := multipartBody(t, map[string]string{"sessionId": "s1"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newTestEngine(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"demoMode":true`)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestProcess_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  map[string]string
	}{
		{name: "missing session", fields: map[string]string{"fileCount": "0"}},
		{name: "bad file count", fields: map[string]string{"sessionId": "s1", "fileCount": "two"}},
		{name: "missing file part", fields: map[string]string{"sessionId": "s1", "fileCount": "2"}, files: map[string]string{"file_0": "a.jpg"}},
		{name: "file count over limit", fields: map[string]string{"sessionId": "s1", "fileCount": "21"}},
		{name: "huge file count", fields: map[string]string{"sessionId": "s1", "fileCount": "100000000000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockService{processFunc: func(context.Context, domain.ProcessRequest) (*domain.ProcessResponse, error) {
				called = true
				return nil, nil
			}}
			body, ct := multipartBody(t, tt.fields, tt.files)
			req := httptest.NewRequest(http.MethodPost, "/api/process", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			newTestEngine(svc).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestProcess_FileCountOverLimit(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"sessionId": "s1", "fileCount": "100000000000"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newTestEngine(&mockService{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request", resp.Error)
	assert.Contains(t, resp.Message, "too many files")
}

func TestProcess_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/process", strings.NewReader(`{"sessionId":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestEngine(&mockService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcess_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: got 30, max 20", domain.ErrTooManyFiles), http.StatusBadRequest},
		{domain.ErrInvalidFormat, http.StatusBadRequest},
		{domain.ErrUnsupportedGallery, http.StatusBadRequest},
		{domain.ErrInvalidGalleryURL, http.StatusBadRequest},
		{domain.ErrGalleryPasswordProtected, http.StatusNotFound},
		{domain.ErrGalleryNoImages, http.StatusNotFound},
		{fmt.Errorf("create session: %w", domain.ErrSessionExists), http.StatusConflict},
		{domain.ErrGalleryFetch, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &mockService{processFunc: func(context.Context, domain.ProcessRequest) (*domain.ProcessResponse, error) {
				return nil, tt.err
			}}
			body, ct := multipartBody(t, map[string]string{"sessionId": "s1"}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/process", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			newTestEngine(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Message, tt.err.Error())
		})
	}
}

func TestGetProgress(t *testing.T) {
	svc := &mockService{progressFunc: func(_ context.Context, id string) (*domain.ProgressSnapshot, error) {
		if id != "s1" {
			return nil, domain.ErrSessionNotFound
		}
		snap := domain.NewProgressSnapshot(2)
		snap.Current = "a.jpg"
		snap.Append(domain.ProcessingResult{Filename: "b.jpg", Status: domain.ResultSuccess})
		return snap, nil
	}}
	engine := newTestEngine(svc)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/process?sessionId=s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, "a.jpg", snap.Current)
	assert.Equal(t, domain.BatchProcessing, snap.Status)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/process?sessionId=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/process", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractGallery(t *testing.T) {
	svc := &mockService{extractFunc: func(_ context.Context, url string) ([]domain.GalleryImage, error) {
		switch url {
		case "https://jane.pixieset.com/ok/":
			return []domain.GalleryImage{{URL: "https://images.pixieset.com/1-xxlarge.jpg", Filename: "pixieset_1.jpg"}}, nil
		case "https://example.com/":
			return nil, domain.ErrUnsupportedGallery
		case "https://jane.pixieset.com/broken/":
			return nil, domain.ErrGalleryFetch
		default:
			return nil, domain.ErrGalleryNoImages
		}
	}}
	engine := newTestEngine(svc)

	tests := []struct {
		body string
		want int
	}{
		{`{"galleryUrl":"https://jane.pixieset.com/ok/"}`, http.StatusOK},
		{`{"galleryUrl":"https://example.com/"}`, http.StatusBadRequest},
		{`{"galleryUrl":"https://jane.pixieset.com/empty/"}`, http.StatusNotFound},
		{`{"galleryUrl":"https://jane.pixieset.com/broken/"}`, http.StatusInternalServerError},
		{`{}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/extract-gallery", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, tt.body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/extract-gallery", strings.NewReader(tests[0].body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var resp dto.ExtractGalleryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "pixieset_1.jpg", resp.Images[0].Filename)
}

func TestStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestEngine(&mockService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"provider":"replicate"`)
	assert.Contains(t, rec.Body.String(), `"apiKeyPrefix":"r8_a..."`)
	assert.Contains(t, rec.Body.String(), `"apiKeyLength":40`)
}

func TestTestProviderConnection(t *testing.T) {
	svc := &mockService{}
	engine := newTestEngine(svc)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/test-provider-connection", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TestConnectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "replicate", resp.Provider)

	svc.testErr = domain.ErrProviderAuth
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/test-provider-connection", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")
}
