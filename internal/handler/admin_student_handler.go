package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aspireabroad/visa-portal-api/internal/dto"
	"github.com/aspireabroad/visa-portal-api/internal/service"
	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

// AdminStudentHandler exposes the admin student management endpoints.
type AdminStudentHandler struct {
	admin  service.AdminStudentService
	logger zerolog.Logger
}

// NewAdminStudentHandler constructs the admin student handler.
func NewAdminStudentHandler(admin service.AdminStudentService, logger zerolog.Logger) *AdminStudentHandler {
	return &AdminStudentHandler{
		admin:  admin,
		logger: logger.With().Str("component", "admin_student_handler").Logger(),
	}
}

// List handles GET /admin/students.
func (h *AdminStudentHandler) List(c *fiber.Ctx) error {
	req := dto.AdminStudentListRequest{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 10),
	}

	resp, err := h.admin.List(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", resp)
}

// Detail handles GET /admin/students/:id.
func (h *AdminStudentHandler) Detail(c *fiber.Ctx) error {
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	resp, err := h.admin.Detail(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", resp)
}

// UpdateStatus handles PATCH /admin/students/:id/status.
func (h *AdminStudentHandler) UpdateStatus(c *fiber.Ctx) error {
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	var req dto.VisaStatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.admin.UpdateStatus(c.UserContext(), studentID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "visa status updated", resp)
}

// StageEdit handles POST /admin/students/:id/edit. Changes are parked until
// confirmed.
func (h *AdminStudentHandler) StageEdit(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	var req dto.AdminStudentEditRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.admin.StageEdit(c.UserContext(), p.UserID, studentID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "edit staged, confirm to apply", resp)
}

// ConfirmEdit handles POST /admin/students/:id/edit/confirm.
func (h *AdminStudentHandler) ConfirmEdit(c *fiber.Ctx) error {
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	resp, err := h.admin.ConfirmEdit(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "edit applied", resp)
}

// CancelEdit handles POST /admin/students/:id/edit/cancel.
func (h *AdminStudentHandler) CancelEdit(c *fiber.Ctx) error {
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	if err := h.admin.CancelEdit(c.UserContext(), studentID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "edit discarded", nil)
}

// StageDelete handles POST /admin/students/:id/delete.
func (h *AdminStudentHandler) StageDelete(c *fiber.Ctx) error {
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	if err := h.admin.StageDelete(c.UserContext(), studentID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "deletion staged, confirm to apply", nil)
}

// ConfirmDelete handles POST /admin/students/:id/delete/confirm.
func (h *AdminStudentHandler) ConfirmDelete(c *fiber.Ctx) error {
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	if err := h.admin.ConfirmDelete(c.UserContext(), studentID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "student deleted", nil)
}

// CancelDelete handles POST /admin/students/:id/delete/cancel.
func (h *AdminStudentHandler) CancelDelete(c *fiber.Ctx) error {
	studentID, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	if err := h.admin.CancelDelete(c.UserContext(), studentID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "deletion cancelled", nil)
}
