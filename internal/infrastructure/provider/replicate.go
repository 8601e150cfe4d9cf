package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

const (
	defaultReplicateURL = "https://api.replicate.com/v1"
	defaultPrompt       = "Remove all watermarks, logos and overlaid text. Keep the rest of the photo unchanged."
)

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (p *prediction) terminal() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// ReplicateClient talks to a Replicate style predictions API.
type ReplicateClient struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	model        string
	version      string
	prompt       string
	pollInterval time.Duration
	maxPoll      time.Duration
	checkURL     func(string) error
	prober       *Prober
}

func NewReplicateClient(cfg config.ProviderConfig, httpClient *http.Client) *ReplicateClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultReplicateURL
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	poll := time.Duration(cfg.PollMs) * time.Millisecond
	if poll <= 0 {
		poll = time.Second
	}
	maxPoll := time.Duration(cfg.MaxPollSec) * time.Second
	if maxPoll <= 0 {
		maxPoll = 5 * time.Minute
	}

	c := &ReplicateClient{
		httpClient:   httpClient,
		baseURL:      baseURL,
		token:        cfg.APIToken,
		model:        cfg.Model,
		version:      cfg.Version,
		prompt:       prompt,
		pollInterval: poll,
		maxPoll:      maxPoll,
		checkURL:     ValidateSourceURL,
	}
	if !cfg.ProbeSkip {
		c.prober = NewProber(httpClient)
	}
	return c
}

func (c *ReplicateClient) Name() string { return "replicate" }

func (c *ReplicateClient) RemoveWatermark(ctx context.Context, imageURL, filename string) (*domain.RemovalResult, error) {
	if err := c.checkURL(imageURL); err != nil {
		zlog.Logger.Warn().Err(err).Str("filename", filename).Msg("source url rejected")
		return nil, err
	}
	if c.prober != nil {
		if err := c.prober.Probe(ctx, imageURL); err != nil {
			return nil, err
		}
	}

	pred, err := c.create(ctx, imageURL)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("filename", filename).Msg("failed to create prediction")
		return nil, err
	}

	deadline := time.Now().Add(c.maxPoll)
	for !pred.terminal() {
		if time.Now().After(deadline) {
			zlog.Logger.Warn().Str("job_id", pred.ID).Str("status", pred.Status).Dur("max_poll", c.maxPoll).Msg("prediction did not finish in time")
			return nil, &Error{
				Kind:      domain.ErrProviderUnavailable,
				Detail:    fmt.Sprintf("prediction %s still %s after %s", pred.ID, pred.Status, c.maxPoll),
				Temporary: true,
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		if pred, err = c.fetch(ctx, pred); err != nil {
			zlog.Logger.Error().Err(err).Str("job_id", pred.ID).Msg("failed to poll prediction")
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		detail := predictionError(pred.Error)
		kind := domain.ErrProviderUnavailable
		temporary := true
		if mentionsFetch(detail) {
			kind, temporary = domain.ErrSourceFetch, false
		}
		zlog.Logger.Warn().
			Str("job_id", pred.ID).
			Str("status", pred.Status).
			Str("detail", detail).
			Msg("prediction did not succeed")
		return nil, &Error{Kind: kind, Detail: fmt.Sprintf("prediction %s %s: %s", pred.ID, pred.Status, detail), Temporary: temporary}
	}

	outputs := parseOutput(pred.Output)
	if len(outputs) == 0 {
		return nil, &Error{Kind: domain.ErrNoOutputImage, Detail: "prediction " + pred.ID, Temporary: true}
	}

	zlog.Logger.Info().
		Str("job_id", pred.ID).
		Str("filename", filename).
		Int("outputs", len(outputs)).
		Msg("watermark removed")

	return &domain.RemovalResult{ProcessedImageURL: outputs[0], JobID: pred.ID}, nil
}

// Ping checks the token against the account endpoint.
func (c *ReplicateClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(ctx, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, body)
	}
	return nil
}

func (c *ReplicateClient) create(ctx context.Context, imageURL string) (*prediction, error) {
	payload := map[string]any{
		"input": map[string]any{
			"image":  imageURL,
			"prompt": c.prompt,
		},
	}
	endpoint := c.baseURL + "/predictions"
	if c.version != "" {
		payload["version"] = c.version
	} else if c.model != "" {
		endpoint = c.baseURL + "/models/" + c.model + "/predictions"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	return c.send(ctx, req)
}

func (c *ReplicateClient) fetch(ctx context.Context, pred *prediction) (*prediction, error) {
	endpoint := pred.URLs.Get
	if endpoint == "" {
		endpoint = c.baseURL + "/predictions/" + pred.ID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pred, fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	next, err := c.send(ctx, req)
	if err != nil {
		return pred, err
	}
	return next, nil
}

func (c *ReplicateClient) send(ctx context.Context, req *http.Request) (*prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, networkError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var pred prediction
	if err := json.Unmarshal(body, &pred); err != nil {
		return nil, &Error{Kind: domain.ErrProviderUnavailable, Detail: "decode prediction: " + err.Error(), Temporary: true}
	}
	return &pred, nil
}

func (c *ReplicateClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// parseOutput accepts the shapes models return: a single URL or a list.
func parseOutput(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		out := many[:0]
		for _, s := range many {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func predictionError(v any) string {
	switch e := v.(type) {
	case nil:
		return "unknown error"
	case string:
		return e
	default:
		b, _ := json.Marshal(e)
		return string(b)
	}
}
