package dto

import "github.com/yokitheyo/wmremover/internal/domain"

type ProcessResponse struct {
	Results   []domain.ProcessingResult `json:"results"`
	SessionID string                    `json:"sessionId"`
	DemoMode  bool                      `json:"demoMode,omitempty"`
}

type ExtractGalleryResponse struct {
	Images []domain.GalleryImage `json:"images"`
}

type TestConnectionResponse struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func MapProcessResponse(resp *domain.ProcessResponse) *ProcessResponse {
	if resp == nil {
		return nil
	}
	results := resp.Results
	if results == nil {
		results = []domain.ProcessingResult{}
	}
	return &ProcessResponse{
		Results:   results,
		SessionID: resp.SessionID,
		DemoMode:  resp.DemoMode,
	}
}
