package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expense-claim-service/internal/persistence"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	postgres *persistence.Postgres
	version  string
}

// NewHealthHandler constructs handler.
func NewHealthHandler(postgres *persistence.Postgres, version string) *HealthHandler {
	return &HealthHandler{postgres: postgres, version: version}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return respondOK(c, fiber.Map{"status": "ok", "version": h.version})
}

// Ready reports dependency readiness.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if err := h.postgres.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "database unavailable",
		})
	}
	return respondOK(c, fiber.Map{"status": "ready", "version": h.version})
}
