package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aspireabroad/visa-portal-api/internal/service"
	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

// DocumentHandler exposes the document lifecycle endpoints.
type DocumentHandler struct {
	documents service.DocumentService
	logger    zerolog.Logger
}

// NewDocumentHandler constructs the document handler.
func NewDocumentHandler(documents service.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger.With().Str("component", "document_handler").Logger(),
	}
}

// Upload handles POST /documents: a student uploading into their own file
// set.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}
	return h.upload(c, p.UserID)
}

// AdminUpload handles POST /admin/students/:id/documents: an admin uploading
// on a student's behalf.
func (h *DocumentHandler) AdminUpload(c *fiber.Ctx) error {
	if _, ok := principal(c); !ok {
		return nil
	}
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}
	return h.upload(c, studentID)
}

func (h *DocumentHandler) upload(c *fiber.Ctx, studentUserID uint) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file part is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "failed to read uploaded file")
	}
	defer file.Close()

	input := service.UploadDocumentInput{
		StudentUserID: studentUserID,
		DocumentType:  c.FormValue("document_type"),
		Title:         c.FormValue("title"),
		FileName:      fileHeader.Filename,
		FileSize:      fileHeader.Size,
		File:          file,
	}

	resp, err := h.documents.Upload(c.UserContext(), actorOf(p), input)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document uploaded", resp)
}

// View handles GET /documents/:id/view: the admin preview descriptor.
func (h *DocumentHandler) View(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}
	documentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	resp, err := h.documents.View(c.UserContext(), actorOf(p), documentID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", resp)
}

// Download handles GET /documents/:id/download, streaming the stored file as
// an attachment.
func (h *DocumentHandler) Download(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}
	documentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	result, err := h.documents.Download(c.UserContext(), actorOf(p), documentID)
	if err != nil {
		return sendServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.FileName))
	return c.SendStream(result.Content)
}

// Delete handles DELETE /documents/:id.
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}
	documentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	if err := h.documents.Delete(c.UserContext(), actorOf(p), documentID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "document deleted", nil)
}
