package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expense-claim-service/internal/auth"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	apperrors "github.com/spec-kit/expense-claim-service/pkg/util"
)

func respondOK(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondCreated(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondMessage(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}

func requestOrigin(c *fiber.Ctx) domain.RequestOrigin {
	return domain.RequestOrigin{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}
