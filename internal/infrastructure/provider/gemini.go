package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/helpers"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash-image"

// GeminiClient edits images with a Gemini image model and stores the output.
type GeminiClient struct {
	client     *genai.Client
	httpClient *http.Client
	model      string
	prompt     string
	storage    domain.StorageService
}

func NewGeminiClient(ctx context.Context, cfg config.ProviderConfig, httpClient *http.Client, storage domain.StorageService) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIToken,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	return &GeminiClient{
		client:     client,
		httpClient: httpClient,
		model:      model,
		prompt:     prompt,
		storage:    storage,
	}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) RemoveWatermark(ctx context.Context, imageURL, filename string) (*domain.RemovalResult, error) {
	data, mime, err := loadSource(ctx, g.httpClient, imageURL)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("filename", filename).Msg("failed to load source image")
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mime),
			genai.NewPartFromText(g.prompt),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("filename", filename).Msg("gemini request failed")
		return nil, classifyGenAIError(ctx, err)
	}

	blob := firstImage(resp)
	if blob == nil {
		return nil, &Error{Kind: domain.ErrNoOutputImage, Detail: "model " + g.model, Temporary: true}
	}

	out, err := g.store(ctx, blob)
	if err != nil {
		return nil, err
	}

	jobID := resp.ResponseID
	zlog.Logger.Info().
		Str("filename", filename).
		Str("mime", blob.MIMEType).
		Int("bytes", len(blob.Data)).
		Msg("watermark removed")

	return &domain.RemovalResult{ProcessedImageURL: out, JobID: jobID}, nil
}

func (g *GeminiClient) Ping(ctx context.Context) error {
	if _, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text("hi"), nil); err != nil {
		return classifyGenAIError(ctx, err)
	}
	return nil
}

func (g *GeminiClient) store(ctx context.Context, blob *genai.Blob) (string, error) {
	if g.storage == nil || !g.storage.Enabled() {
		return helpers.DataURI(blob.MIMEType, blob.Data), nil
	}

	name := uuid.NewString() + extensionFor(blob.MIMEType)
	url, err := g.storage.SaveProcessed(ctx, name, bytes.NewReader(blob.Data))
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", name).Msg("failed to store processed image")
		return "", fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}
	return url, nil
}

// firstImage returns the first inline image part of the first candidate that has one.
func firstImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 &&
				strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				return part.InlineData
			}
		}
	}
	return nil
}

func classifyGenAIError(ctx context.Context, err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, []byte(apiErr.Message))
	}
	return networkError(ctx, err)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
