package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

type uploadResponsePayload struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	UploadedAt   string `json:"uploadedAt"`
}

func (h *httpHandler) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "multipart field 'file' is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Warn("failed to open multipart file", zap.Error(err), zap.String("filename", header.Filename))
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "could not read uploaded file")
		return
	}
	defer file.Close()

	object, err := h.objects.Save(c.Request.Context(), storage.Upload{
		Reader:       file,
		Size:         header.Size,
		ContentType:  header.Header.Get("Content-Type"),
		OriginalName: header.Filename,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	photoID, err := newUploadID()
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponsePayload{
		ID:           photoID,
		Filename:     object.Filename,
		URL:          object.URL,
		OriginalName: header.Filename,
		Size:         object.Size,
		MimeType:     object.ContentType,
		UploadedAt:   h.clock().UTC().Format(time.RFC3339Nano),
	})
}

func (h *httpHandler) handleGetImage(c *gin.Context) {
	reader, contentType, err := h.objects.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}

func (h *httpHandler) handleDeleteImage(c *gin.Context) {
	err := h.objects.Delete(c.Request.Context(), c.Param("filename"))
	if errors.Is(err, storage.ErrObjectNotFound) {
		respondError(c, http.StatusNotFound, "IMAGE_NOT_FOUND", "image not found")
		return
	}
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted successfully"})
}

func newUploadID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
