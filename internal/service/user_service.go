package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/auth"
	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/repository"
	apperrors "github.com/spec-kit/expense-claim-service/pkg/util"
)

// UserService manages employee accounts.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	authCfg    config.AuthConfig
	empCfg     config.EmployeesConfig
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// UserCreateInput describes account creation payload.
type UserCreateInput struct {
	Email      string
	Name       string
	Password   string
	Role       string
	Department string
	Phone      string
	EmployeeID string
}

// UserUpdateInput describes editable account fields. Role and Status are
// admin-only; self-service updates may touch only the profile fields.
type UserUpdateInput struct {
	Email      *string
	Name       *string
	Department *string
	Phone      *string
	Role       *string
	Status     *string
	EmployeeID *string
}

// NewUserService constructs the service.
func NewUserService(authCfg config.AuthConfig, empCfg config.EmployeesConfig, deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		authCfg:    authCfg,
		empCfg:     empCfg,
	}
}

// CreateUser registers a new account. When no employee id is supplied one is
// allocated from the configured prefix sequence.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.User, input UserCreateInput, origin domain.RequestOrigin) (*domain.User, error) {
	if !actor.Role.Has(domain.CapManageUsers) {
		return nil, apperrors.NewForbidden("cannot manage users")
	}

	email := domain.NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("valid email required", map[string]any{"email": "invalid"})
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("name required", map[string]any{"name": "required"})
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"password": "too short"})
	}
	role, ok := domain.NormalizeRole(input.Role)
	if !ok {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}

	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if err != nil && err != pgx.ErrNoRows {
		return nil, apperrors.MapError(err)
	}

	employeeID := domain.NormalizeEmployeeID(input.EmployeeID)
	if employeeID == "" {
		allocated, err := s.allocateEmployeeID(ctx)
		if err != nil {
			return nil, err
		}
		employeeID = allocated
	} else {
		if existing, err := s.users.GetByEmployeeID(ctx, employeeID); err == nil && existing != nil {
			return nil, apperrors.NewConflict("employee id already taken", map[string]any{"employee_id": employeeID})
		} else if err != nil && err != pgx.ErrNoRows {
			return nil, apperrors.MapError(err)
		}
	}

	hashed, err := auth.HashPassword(input.Password, s.authCfg.BcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		EmployeeID:   employeeID,
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hashed,
		Role:         role,
		Department:   strings.TrimSpace(input.Department),
		Phone:        strings.TrimSpace(input.Phone),
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventUserCreated,
		EntityType: "user",
		EntityID:   user.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload:    events.UserChangedPayload{EmployeeID: user.EmployeeID, Role: user.Role, Status: user.Status},
	})
	return user, nil
}

// ListUsers returns accounts matching the filter. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User, filter repository.UserFilter) ([]domain.User, error) {
	if !actor.Role.Has(domain.CapManageUsers) {
		return nil, apperrors.NewForbidden("cannot manage users")
	}
	return s.users.List(ctx, filter)
}

// GetUser fetches a single account. Non-admins can only read themselves.
func (s *UserService) GetUser(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	if actor.ID != userID && !actor.Role.Has(domain.CapManageUsers) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.getUser(ctx, userID)
}

// UpdateUser edits an account. Admins may change any field; everyone else
// may edit only their own profile fields.
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.User, userID string, input UserUpdateInput, origin domain.RequestOrigin) (*domain.User, error) {
	isAdmin := actor.Role.Has(domain.CapManageUsers)
	isSelf := actor.ID == userID
	if !isAdmin && !isSelf {
		return nil, apperrors.NewForbidden("access denied")
	}
	if !isAdmin && (input.Role != nil || input.Status != nil || input.EmployeeID != nil) {
		return nil, apperrors.NewForbidden("cannot change role, status, or employee id")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := domain.NormalizeEmail(*input.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, apperrors.NewValidationError("valid email required", map[string]any{"email": "invalid"})
		}
		if email != user.Email {
			if existing, lookupErr := s.users.GetByEmail(ctx, email); lookupErr == nil && existing != nil && existing.ID != user.ID {
				return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
			} else if lookupErr != nil && lookupErr != pgx.ErrNoRows {
				return nil, apperrors.MapError(lookupErr)
			}
		}
		user.Email = email
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Department != nil {
		user.Department = strings.TrimSpace(*input.Department)
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Role != nil {
		role, ok := domain.NormalizeRole(*input.Role)
		if !ok {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": *input.Role})
		}
		if isSelf && role != user.Role {
			return nil, apperrors.NewValidationError("cannot change own role", nil)
		}
		user.Role = role
	}
	if input.Status != nil {
		status, ok := domain.ValidUserStatus(*input.Status)
		if !ok {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		if isSelf && status != user.Status {
			return nil, apperrors.NewValidationError("cannot change own status", nil)
		}
		user.Status = status
	}
	if input.EmployeeID != nil {
		employeeID := domain.NormalizeEmployeeID(*input.EmployeeID)
		if employeeID == "" {
			return nil, apperrors.NewValidationError("employee id required", map[string]any{"employee_id": "required"})
		}
		if employeeID != user.EmployeeID {
			if existing, lookupErr := s.users.GetByEmployeeID(ctx, employeeID); lookupErr == nil && existing != nil && existing.ID != user.ID {
				return nil, apperrors.NewConflict("employee id already taken", map[string]any{"employee_id": employeeID})
			} else if lookupErr != nil && lookupErr != pgx.ErrNoRows {
				return nil, apperrors.MapError(lookupErr)
			}
		}
		user.EmployeeID = employeeID
	}

	if err := s.users.Update(ctx, user); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventUserUpdated,
		EntityType: "user",
		EntityID:   user.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload:    events.UserChangedPayload{EmployeeID: user.EmployeeID, Role: user.Role, Status: user.Status},
	})
	return user, nil
}

// UpdateStatus activates, deactivates, or suspends an account. Admin only;
// admins cannot change their own status.
func (s *UserService) UpdateStatus(ctx context.Context, actor *domain.User, userID, rawStatus string, origin domain.RequestOrigin) (*domain.User, error) {
	if !actor.Role.Has(domain.CapManageUsers) {
		return nil, apperrors.NewForbidden("cannot manage users")
	}
	if actor.ID == userID {
		return nil, apperrors.NewValidationError("cannot change own status", nil)
	}
	status, ok := domain.ValidUserStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": rawStatus})
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Status = status
	if err := s.users.Update(ctx, user); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventUserStatusChanged,
		EntityType: "user",
		EntityID:   user.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload:    events.UserChangedPayload{EmployeeID: user.EmployeeID, Status: user.Status},
	})
	return user, nil
}

// DeleteUser permanently removes an account. Admin only; admins cannot
// delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.User, userID string, origin domain.RequestOrigin) error {
	if !actor.Role.Has(domain.CapManageUsers) {
		return apperrors.NewForbidden("cannot manage users")
	}
	if actor.ID == userID {
		return apperrors.NewValidationError("cannot delete own account", nil)
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventUserDeleted,
		EntityType: "user",
		EntityID:   user.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload:    events.UserChangedPayload{EmployeeID: user.EmployeeID},
	})
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// allocateEmployeeID derives the next id from the highest existing one with
// the configured prefix. When the suffix cannot be parsed the account count
// plus offset is used instead.
func (s *UserService) allocateEmployeeID(ctx context.Context) (string, error) {
	prefix := s.empCfg.IDPrefix
	highest, err := s.users.HighestEmployeeID(ctx, prefix)
	if err != nil {
		return "", apperrors.MapError(err)
	}

	next := 0
	if highest != "" {
		suffix := strings.TrimPrefix(highest, prefix)
		if parsed, parseErr := strconv.Atoi(suffix); parseErr == nil {
			next = parsed + 1
		}
	}
	if next == 0 {
		count, countErr := s.users.Count(ctx)
		if countErr != nil {
			return "", apperrors.MapError(countErr)
		}
		next = int(count) + s.empCfg.IDOffset + 1
	}
	return prefix + strconv.Itoa(next), nil
}

func (s *UserService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
