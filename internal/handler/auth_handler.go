package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aspireabroad/visa-portal-api/internal/dto"
	"github.com/aspireabroad/visa-portal-api/internal/service"
	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

// AuthHandler exposes registration, login and credential lifecycle endpoints.
type AuthHandler struct {
	auth   service.AuthService
	logger zerolog.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(auth service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With().Str("component", "auth_handler").Logger(),
	}
}

// SendOTP handles POST /auth/register/send-otp.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req dto.SendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.auth.SendRegistrationOTP(c.UserContext(), req.Email); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "verification code sent", nil)
}

// VerifyOTP handles POST /auth/register/verify-otp.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.auth.VerifyRegistrationOTP(c.UserContext(), req.Email, req.OTP); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "email verified", nil)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.auth.Register(c.UserContext(), req); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registration complete", nil)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.auth.Login(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "login successful", resp)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}

	if err := h.auth.Logout(c.UserContext(), p.SessionID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "logged out", nil)
}

// ForgotPassword handles POST /auth/forgot-password. The response is the
// same whether or not the identifier matched an account.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identifier == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "identifier is required")
	}

	if err := h.auth.ForgotPassword(c.UserContext(), req.Identifier, requestMeta(c)); err != nil {
		h.logger.Error().Err(err).Msg("forgot password request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
	return utils.SendSuccess(c, service.GenericResetMessage(), nil)
}

// ForceChangePassword handles POST /auth/force-change-password. It is the
// only mutating route reachable while the session is flagged.
func (h *AuthHandler) ForceChangePassword(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}

	var req dto.ForceChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.auth.ForceChangePassword(c.UserContext(), p.UserID, p.SessionID, req); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "password updated", nil)
}

// ChangePassword handles PUT /settings/password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return nil
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.auth.ChangePassword(c.UserContext(), p.UserID, p.SessionID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "password updated", resp)
}
