package dto

// Multipart field names of POST /api/process.
const (
	FieldSessionID  = "sessionId"
	FieldGalleryURL = "galleryUrl"
	FieldFileCount  = "fileCount"
	FilePrefix      = "file_"
)

type ExtractGalleryRequest struct {
	GalleryURL string `json:"galleryUrl" binding:"required"`
}
