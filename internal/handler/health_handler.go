package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/utils"
)

// HealthHandler reports liveness of the API and its backing stores.
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler constructs the health handler. Either dependency may be
// nil, in which case it is reported as skipped.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.Map{"api": "ok"}
	healthy := true

	if h.db != nil {
		status["database"] = "ok"
		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status["database"] = "unreachable"
			healthy = false
		}
	} else {
		status["database"] = "skipped"
	}

	if h.redis != nil {
		status["redis"] = "ok"
		if err := h.redis.Ping(c.UserContext()).Err(); err != nil {
			status["redis"] = "unreachable"
			healthy = false
		}
	} else {
		status["redis"] = "skipped"
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
			Success: false,
			Data:    status,
			Message: "degraded",
		})
	}
	return utils.SendSuccess(c, "healthy", status)
}
