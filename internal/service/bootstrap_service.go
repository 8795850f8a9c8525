package service

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/auth"
	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/repository"
)

// BootstrapService seeds the first admin account at startup. Nothing happens
// when an admin already exists or when the seed credentials are not set, so
// the step is safe to run on every boot.
type BootstrapService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	authCfg    config.AuthConfig
	empCfg     config.EmployeesConfig
	bootCfg    config.BootstrapConfig
}

// NewBootstrapService constructs the service.
func NewBootstrapService(authCfg config.AuthConfig, empCfg config.EmployeesConfig, bootCfg config.BootstrapConfig, users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *BootstrapService {
	return &BootstrapService{
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
		authCfg:    authCfg,
		empCfg:     empCfg,
		bootCfg:    bootCfg,
	}
}

// Run performs the seed check.
func (s *BootstrapService) Run(ctx context.Context) error {
	admins, err := s.users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}
	if s.bootCfg.AdminEmail == "" || s.bootCfg.AdminPassword == "" {
		s.logger.Warn("no admin account exists and bootstrap credentials are not configured")
		return nil
	}

	email := domain.NormalizeEmail(s.bootCfg.AdminEmail)
	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		s.logger.Warn("bootstrap email already registered with non-admin role", zap.String("email", email))
		return nil
	} else if err != nil && err != pgx.ErrNoRows {
		return err
	}

	hashed, err := auth.HashPassword(s.bootCfg.AdminPassword, s.authCfg.BcryptCost)
	if err != nil {
		return err
	}

	admin := &domain.User{
		EmployeeID:   s.empCfg.IDPrefix + strconv.Itoa(s.empCfg.IDOffset+1),
		Email:        email,
		Name:         s.bootCfg.AdminName,
		PasswordHash: hashed,
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("seeded bootstrap admin account",
		zap.String("employee_id", admin.EmployeeID),
		zap.String("email", admin.Email))

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:       events.EventUserCreated,
			EntityType: "user",
			EntityID:   admin.ID,
			Actor:      events.Actor{Name: "system", Role: domain.RoleAdmin},
			Payload:    events.UserChangedPayload{EmployeeID: admin.EmployeeID, Role: admin.Role, Status: admin.Status},
		})
	}
	return nil
}
