package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

// RequireAdmin rejects callers without the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if !principal.CanManageStudents() {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireStudent rejects callers without the student role.
func RequireStudent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if !principal.IsStudent() {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// ForcedChangeGate blocks every authenticated action while the session is
// flagged must-change-password. The force-change and logout routes are
// registered outside this gate.
func ForcedChangeGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if principal.MustChangePassword {
			return utils.SendError(c, fiber.StatusForbidden, "password change required before continuing")
		}
		return c.Next()
	}
}
