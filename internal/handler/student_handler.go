package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aspireabroad/visa-portal-api/internal/dto"
	"github.com/aspireabroad/visa-portal-api/internal/service"
	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

// StudentHandler exposes the student dashboard and profile endpoints.
type StudentHandler struct {
	students service.StudentService
	logger   zerolog.Logger
}

// NewStudentHandler constructs the student handler.
func NewStudentHandler(students service.StudentService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		students: students,
		logger:   logger.With().Str("component", "student_handler").Logger(),
	}
}

// Dashboard handles GET /student/dashboard.
func (h *StudentHandler) Dashboard(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}

	resp, err := h.students.Dashboard(c.UserContext(), p.UserID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", resp)
}

// UpdateProfile handles PUT /student/profile. Accepts multipart form data
// when a photo is attached, plain JSON otherwise. Absent fields are left
// untouched.
func (h *StudentHandler) UpdateProfile(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}

	var req dto.ProfileUpdateRequest
	var photo *service.ProfilePhotoInput

	if form, err := c.MultipartForm(); err == nil && form != nil {
		if vals, present := form.Value["passport_number"]; present && len(vals) > 0 {
			req.PassportNumber = &vals[0]
		}
		if vals, present := form.Value["address"]; present && len(vals) > 0 {
			req.Address = &vals[0]
		}
		if files := form.File["photo"]; len(files) > 0 {
			file, err := files[0].Open()
			if err != nil {
				return utils.SendError(c, fiber.StatusBadRequest, "failed to read uploaded photo")
			}
			defer file.Close()
			photo = &service.ProfilePhotoInput{FileName: files[0].Filename, File: file}
		}
	} else if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.students.UpdateProfile(c.UserContext(), p.UserID, req, photo)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "profile updated", resp)
}

// ClearNotifications handles POST /student/notifications/clear.
func (h *StudentHandler) ClearNotifications(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}

	if err := h.students.ClearNotifications(c.UserContext(), p.UserID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "notifications cleared", nil)
}
