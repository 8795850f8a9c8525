package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expense-claim-service/internal/api/dto"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/repository"
	"github.com/spec-kit/expense-claim-service/internal/service"
	apperrors "github.com/spec-kit/expense-claim-service/pkg/util"
)

// UsersHandler exposes employee account management endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Create registers a new account.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	user, err := h.users.CreateUser(c.Context(), p.User, service.UserCreateInput{
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
		Phone:      req.Phone,
		EmployeeID: req.EmployeeID,
	}, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondCreated(c, dto.NewUserResponse(user))
}

// List returns accounts matching query filters.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	filter := repository.UserFilter{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("role"); raw != "" {
		role, ok := domain.NormalizeRole(raw)
		if !ok {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": raw})
		}
		filter.Role = &role
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ValidUserStatus(raw)
		if !ok {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	if raw := c.Query("department"); raw != "" {
		filter.Department = &raw
	}

	users, err := h.users.ListUsers(c.Context(), p.User, filter)
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewUserListResponse(users))
}

// Get returns one account.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.users.GetUser(c.Context(), p.User, c.Params("id"))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewUserResponse(user))
}

// Update edits an account.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	user, err := h.users.UpdateUser(c.Context(), p.User, c.Params("id"), service.UserUpdateInput{
		Email:      req.Email,
		Name:       req.Name,
		Department: req.Department,
		Phone:      req.Phone,
		Role:       req.Role,
		Status:     req.Status,
		EmployeeID: req.EmployeeID,
	}, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewUserResponse(user))
}

// UpdateStatus changes account status.
func (h *UsersHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	user, err := h.users.UpdateStatus(c.Context(), p.User, c.Params("id"), req.Status, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewUserResponse(user))
}

// Delete removes an account.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.users.DeleteUser(c.Context(), p.User, c.Params("id"), requestOrigin(c)); err != nil {
		return err
	}
	return respondMessage(c, "user deleted")
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
