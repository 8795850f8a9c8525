package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/api/http/handlers"
	"github.com/spec-kit/expense-claim-service/internal/auth"
	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/observability"
)

// RouterDeps bundles everything the HTTP layer needs.
type RouterDeps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	AuthMW  *auth.AuthMiddleware
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Users   *handlers.UsersHandler
	Claims  *handlers.ClaimsHandler
}

// NewServer builds the Fiber app with all routes registered.
func NewServer(deps RouterDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      deps.Config.App.Name,
		ErrorHandler: ErrorHandler(deps.Logger, deps.Metrics),
		ReadTimeout:  deps.Config.App.RequestTimeout(),
		WriteTimeout: deps.Config.App.RequestTimeout(),
	})

	app.Use(recover.New())
	app.Use(observability.RequestLogger(deps.Logger, deps.Metrics))

	app.Get("/health/live", deps.Health.Live)
	app.Get("/health/ready", deps.Health.Ready)
	app.Static(deps.Config.Uploads.BaseURL, deps.Config.Uploads.Dir)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", deps.Auth.Login)
	authGroup.Post("/refresh", deps.Auth.Refresh)
	authGroup.Post("/logout", deps.AuthMW.Handle, deps.Auth.Logout)
	authGroup.Post("/change-password", deps.AuthMW.Handle, deps.Auth.ChangePassword)
	authGroup.Get("/me", deps.AuthMW.Handle, deps.Auth.Me)

	users := api.Group("/users", deps.AuthMW.Handle)
	users.Post("/", auth.RequireCapability(domain.CapManageUsers), deps.Users.Create)
	users.Get("/", auth.RequireCapability(domain.CapManageUsers), deps.Users.List)
	users.Get("/:id", deps.Users.Get)
	users.Put("/:id", deps.Users.Update)
	users.Put("/:id/status", auth.RequireCapability(domain.CapManageUsers), deps.Users.UpdateStatus)
	users.Delete("/:id/delete", auth.RequireCapability(domain.CapManageUsers), deps.Users.Delete)

	claims := api.Group("/claims", deps.AuthMW.Handle)
	claims.Post("/", deps.Claims.Create)
	claims.Get("/", deps.Claims.List)
	claims.Get("/stats", deps.Claims.Stats)
	claims.Post("/receipts", deps.Claims.UploadReceipt)
	claims.Get("/:id", deps.Claims.Get)
	claims.Put("/:id", deps.Claims.Update)
	claims.Delete("/:id", deps.Claims.Delete)
	claims.Put("/:id/recommend", deps.Claims.Recommend)
	claims.Put("/:id/approve", deps.Claims.Approve)
	claims.Put("/:id/reject", deps.Claims.Reject)
	claims.Put("/:id/pay", deps.Claims.Pay)
	claims.Put("/:id/status", auth.RequireAdmin(), deps.Claims.SetStatus)

	return app
}
