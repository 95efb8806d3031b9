package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/aspireabroad/visa-portal-api/internal/middleware"
	"github.com/aspireabroad/visa-portal-api/internal/service"
	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

// clientIP prefers the first X-Forwarded-For hop so rate limits and audit
// rows see the real client behind a proxy.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	return c.IP()
}

func requestMeta(c *fiber.Ctx) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: clientIP(c),
		UserAgent: c.Get("User-Agent"),
	}
}

// principal returns the authenticated caller or writes a 401.
func principal(c *fiber.Ctx) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		_ = utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
	return p, ok
}

func actorOf(p middleware.Principal) service.Actor {
	return service.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

// sendServiceError translates validation failures and known business errors
// into responses; anything unrecognised becomes a 500.
func sendServiceError(c *fiber.Ctx, err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return utils.SendError(c, fiber.StatusBadRequest, "validation failed on: "+strings.Join(fields, ", "))
	}

	if status, ok := statusOf(err); ok {
		return utils.SendError(c, status, err.Error())
	}
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func statusOf(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTempPasswordExpired):
		return fiber.StatusUnauthorized, true

	case errors.Is(err, service.ErrDocumentForbidden),
		errors.Is(err, service.ErrForcedChangeNotRequired):
		return fiber.StatusForbidden, true

	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrNoPendingEdit),
		errors.Is(err, service.ErrNoPendingDelete):
		return fiber.StatusNotFound, true

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrPassportTaken):
		return fiber.StatusConflict, true

	case errors.Is(err, service.ErrPasswordChangeLocked):
		return fiber.StatusTooManyRequests, true

	case errors.Is(err, service.ErrEmailNotVerified),
		errors.Is(err, service.ErrOTPInvalid),
		errors.Is(err, service.ErrOTPExpired),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrDocumentTypeInvalid),
		errors.Is(err, service.ErrFileTypeNotAllowed),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrFileContentMismatch),
		errors.Is(err, service.ErrPhotoTypeNotAllowed),
		errors.Is(err, service.ErrVisaStatusInvalid),
		errors.Is(err, service.ErrNothingToChange):
		return fiber.StatusBadRequest, true

	case errors.Is(err, service.ErrOTPDeliveryFailed):
		return fiber.StatusServiceUnavailable, true
	}
	return 0, false
}

// paramID parses a positive numeric path parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		_ = utils.SendError(c, fiber.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}
