package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/dto"
)

type WatermarkHandler struct {
	service       domain.WatermarkService
	maxUploadSize int64
	maxFiles      int
}

func NewWatermarkHandler(service domain.WatermarkService, maxUploadSizeMB, maxFiles int) *WatermarkHandler {
	return &WatermarkHandler{
		service:       service,
		maxUploadSize: int64(maxUploadSizeMB) * 1024 * 1024,
		maxFiles:      maxFiles,
	}
}

func (h *WatermarkHandler) RegisterRoutes(engine *ginext.Engine) {
	api := engine.Group("/api")
	api.POST("/process", h.Process)
	api.GET("/process", h.GetProgress)
	api.POST("/extract-gallery", h.ExtractGallery)
	api.GET("/status", h.Status)
	api.POST("/test-provider-connection", h.TestProviderConnection)
}

// Process POST /api/process
func (h *WatermarkHandler) Process(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(h.maxUploadSize); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to parse multipart form")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request must be multipart/form-data",
		})
		return
	}

	sessionID := strings.TrimSpace(c.PostForm(dto.FieldSessionID))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "sessionId is required",
		})
		return
	}

	fileCount := 0
	if raw := c.PostForm(dto.FieldFileCount); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "invalid_request",
				Message: "fileCount must be a non-negative integer",
			})
			return
		}
		fileCount = n
	}
	if h.maxFiles > 0 && fileCount > h.maxFiles {
		status, body := errorResponse(fmt.Errorf("%w: got %d, max %d", domain.ErrTooManyFiles, fileCount, h.maxFiles))
		c.JSON(status, body)
		return
	}

	uploads := make([]domain.Upload, 0, fileCount)
	for i := 0; i < fileCount; i++ {
		up, err := h.readUpload(c, fmt.Sprintf("%s%d", dto.FilePrefix, i))
		if err != nil {
			status, body := errorResponse(err)
			c.JSON(status, body)
			return
		}
		uploads = append(uploads, up)
	}

	resp, err := h.service.Process(c.Request.Context(), domain.ProcessRequest{
		SessionID:  sessionID,
		GalleryURL: strings.TrimSpace(c.PostForm(dto.FieldGalleryURL)),
		Uploads:    uploads,
	})
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			zlog.Logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to process batch")
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, dto.MapProcessResponse(resp))
}

// GetProgress GET /api/process?sessionId=
func (h *WatermarkHandler) GetProgress(c *ginext.Context) {
	sessionID := c.Query(dto.FieldSessionID)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "sessionId is required",
		})
		return
	}

	snap, err := h.service.Progress(c.Request.Context(), sessionID)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// ExtractGallery POST /api/extract-gallery
func (h *WatermarkHandler) ExtractGallery(c *ginext.Context) {
	var req dto.ExtractGalleryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.GalleryURL) == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "galleryUrl is required",
		})
		return
	}

	images, err := h.service.ExtractGallery(c.Request.Context(), strings.TrimSpace(req.GalleryURL))
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			zlog.Logger.Error().Err(err).Str("gallery_url", req.GalleryURL).Msg("failed to scrape gallery")
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, dto.ExtractGalleryResponse{Images: images})
}

// Status GET /api/status
func (h *WatermarkHandler) Status(c *ginext.Context) {
	c.JSON(http.StatusOK, h.service.Status())
}

// TestProviderConnection POST /api/test-provider-connection
func (h *WatermarkHandler) TestProviderConnection(c *ginext.Context) {
	provider := h.service.Status().Provider
	if err := h.service.TestProvider(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, dto.TestConnectionResponse{
			Success:  false,
			Provider: provider,
			Message:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, dto.TestConnectionResponse{
		Success:  true,
		Provider: provider,
		Message:  "connection ok",
	})
}

// Helper methods

func (h *WatermarkHandler) readUpload(c *ginext.Context, field string) (domain.Upload, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("field", field).Msg("failed to get file from request")
		return domain.Upload{}, fmt.Errorf("%w: missing %s", domain.ErrNoImages, field)
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		return domain.Upload{}, fmt.Errorf("%w: %s (%d MB max)", domain.ErrFileTooLarge, header.Filename, h.maxUploadSize/(1024*1024))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read %s: %w", field, err)
	}
	return domain.Upload{Filename: header.Filename, Data: data}, nil
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict, dto.ErrorResponse{Error: "session_exists", Message: err.Error()}
	case domain.IsGalleryEmpty(err):
		return http.StatusNotFound, dto.ErrorResponse{Error: "no_images", Message: err.Error()}
	case errors.Is(err, domain.ErrTooManyFiles),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrFileTooLarge),
		errors.Is(err, domain.ErrNoImages),
		errors.Is(err, domain.ErrInvalidGalleryURL),
		errors.Is(err, domain.ErrUnsupportedGallery):
		return http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: "server_error", Message: err.Error()}
	}
}
