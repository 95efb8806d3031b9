package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aspireabroad/visa-portal-api/internal/models"
	"github.com/aspireabroad/visa-portal-api/internal/session"
	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

const principalLocal = "principal"

// Principal is the authenticated caller carried through the request context.
// Authorization decisions are expressed as capability checks against it
// rather than ad hoc role-string comparisons in every handler.
type Principal struct {
	UserID             uint
	Role               models.Role
	SessionID          string
	MustChangePassword bool
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// IsStudent reports whether the caller holds the student role.
func (p Principal) IsStudent() bool {
	return p.Role == models.RoleStudent
}

// CanAccessDocument reports whether the caller may download or delete a
// document owned by ownerID.
func (p Principal) CanAccessDocument(ownerID uint) bool {
	return p.IsAdmin() || p.UserID == ownerID
}

// CanManageStudents reports whether the caller may use the admin student
// management surface.
func (p Principal) CanManageStudents() bool {
	return p.IsAdmin()
}

// IssueToken mints a signed JWT for the session.
func IssueToken(secret string, sess session.Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", sess.UserID),
		"role": string(sess.Role),
		"sid":  sess.ID,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Authenticated validates the bearer token, loads the server-side session and
// attaches the resulting Principal to the request. A token whose session no
// longer exists (logout, rotation) is rejected.
func Authenticated(secret string, sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		sid, _ := claims["sid"].(string)
		if sid == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}

		sess, err := sessions.Get(ctx, sid)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return utils.SendError(c, fiber.StatusUnauthorized, "session expired")
			}
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load session")
		}

		c.Locals(principalLocal, Principal{
			UserID:             sess.UserID,
			Role:               sess.Role,
			SessionID:          sess.ID,
			MustChangePassword: sess.MustChangePassword,
		})

		return c.Next()
	}
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(c *fiber.Ctx) (Principal, bool) {
	if v := c.Locals(principalLocal); v != nil {
		if p, ok := v.(Principal); ok {
			return p, true
		}
	}
	return Principal{}, false
}
