package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expense-claim-service/internal/api/dto"
	"github.com/spec-kit/expense-claim-service/internal/service"
	apperrors "github.com/spec-kit/expense-claim-service/pkg/util"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login authenticates by employee id or email.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	result, err := h.auth.LoginWithHandle(c.Context(), req.Username, req.Password, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewLoginResponse(result))
}

// Refresh rotates a refresh token into a fresh token pair.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.RefreshToken == "" {
		return apperrors.NewValidationError("refresh token required", map[string]any{"refresh_token": "required"})
	}

	result, err := h.auth.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewLoginResponse(result))
}

// Logout revokes the caller's refresh token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	if err := h.auth.Logout(c.Context(), p.User, req.RefreshToken, requestOrigin(c)); err != nil {
		return err
	}
	return respondMessage(c, "logged out")
}

// ChangePassword updates the caller's password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	if err := h.auth.ChangePassword(c.Context(), p.User, req.CurrentPassword, req.NewPassword, requestOrigin(c)); err != nil {
		return err
	}
	return respondMessage(c, "password changed")
}

// Me returns the authenticated profile.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewUserResponse(p.User))
}
