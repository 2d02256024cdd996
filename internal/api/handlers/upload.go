package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ObjectUploader stores an uploaded file and returns its public URL.
type ObjectUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
}

type UploadHandler struct {
	storage ObjectUploader
	maxSize int64
}

func NewUploadHandler(storage ObjectUploader, maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = 25 << 20
	}
	return &UploadHandler{storage: storage, maxSize: maxSize}
}

// Upload godoc
// @Summary Upload a media file
// @Description Stores the multipart "file" field and returns its URL for use as message content
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{} "No file"
// @Failure 503 {object} map[string]interface{} "Storage not configured"
// @Router /upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage not configured"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file"})
		return
	}
	if fileHeader.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selection"})
		return
	}
	if fileHeader.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := h.storage.Upload(c.Request.Context(), fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		slog.Error("Upload failed", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
