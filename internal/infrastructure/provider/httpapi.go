package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

type httpAPIRequest struct {
	ImageURL string `json:"image_url"`
	Filename string `json:"filename"`
	Prompt   string `json:"prompt,omitempty"`
}

type httpAPIResponse struct {
	ResultURL string   `json:"result_url"`
	Output    []string `json:"output"`
	JobID     string   `json:"job_id"`
	Error     string   `json:"error"`
}

// HTTPAPIClient is a generic JSON watermark API keyed by X-API-Key.
type HTTPAPIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	prompt     string
}

func NewHTTPAPIClient(cfg config.ProviderConfig, httpClient *http.Client) *HTTPAPIClient {
	return &HTTPAPIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIToken,
		prompt:     cfg.Prompt,
	}
}

func (c *HTTPAPIClient) Name() string { return "httpapi" }

func (c *HTTPAPIClient) RemoveWatermark(ctx context.Context, imageURL, filename string) (*domain.RemovalResult, error) {
	body, err := json.Marshal(httpAPIRequest{ImageURL: imageURL, Filename: filename, Prompt: c.prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/remove-watermark", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("filename", filename).Msg("watermark api request failed")
		return nil, networkError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, networkError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := classifyStatus(resp.StatusCode, raw)
		zlog.Logger.Warn().Err(perr).Str("filename", filename).Msg("watermark api rejected request")
		return nil, perr
	}

	var out httpAPIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: domain.ErrProviderUnavailable, Detail: "decode response: " + err.Error(), Temporary: true}
	}
	if out.Error != "" {
		kind, temporary := domain.ErrProviderUnavailable, true
		if mentionsFetch(out.Error) {
			kind, temporary = domain.ErrSourceFetch, false
		}
		return nil, &Error{Kind: kind, Detail: out.Error, Temporary: temporary}
	}

	result := out.ResultURL
	if result == "" && len(out.Output) > 0 {
		result = out.Output[0]
	}
	if result == "" {
		return nil, &Error{Kind: domain.ErrNoOutputImage, Detail: "job " + out.JobID, Temporary: true}
	}

	return &domain.RemovalResult{ProcessedImageURL: result, JobID: out.JobID}, nil
}

func (c *HTTPAPIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/account", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(ctx, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, raw)
	}
	return nil
}
