package handler

import (
	"github.com/labstack/echo/v4"

	"brokerdesk/internal/infrastructure/storage"
	"brokerdesk/pkg/errors"
	"brokerdesk/pkg/response"
)

// Attachments above this size are rejected before touching the bucket.
const maxAttachmentSize = 25 << 20 // 25 MiB

type AttachmentHandler struct {
	storage *storage.CloudStorageClient
}

func NewAttachmentHandler(storageClient *storage.CloudStorageClient) *AttachmentHandler {
	return &AttachmentHandler{
		storage: storageClient,
	}
}

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"text/plain":         true,
	"text/csv":           true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
}

// Upload stores one multipart file and returns the attachment descriptor to
// embed in a subsequent send.
func (h *AttachmentHandler) Upload(c echo.Context) error {
	userID := c.Get("uid").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("Missing file upload", err))
	}
	if fileHeader.Size > maxAttachmentSize {
		return response.Error(c, errors.BadRequest("File exceeds the 25MB attachment limit", nil))
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedAttachmentTypes[contentType] {
		return response.Error(c, errors.BadRequest("Unsupported attachment type", nil))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to read upload", err))
	}
	defer file.Close()

	attachment, err := h.storage.UploadAttachment(
		c.Request().Context(), userID, fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to store attachment", err))
	}

	return response.Created(c, attachment)
}
