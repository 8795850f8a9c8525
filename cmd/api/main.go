package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httpapi "github.com/spec-kit/expense-claim-service/internal/api/http"
	"github.com/spec-kit/expense-claim-service/internal/api/http/handlers"
	"github.com/spec-kit/expense-claim-service/internal/auth"
	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/observability"
	"github.com/spec-kit/expense-claim-service/internal/persistence"
	"github.com/spec-kit/expense-claim-service/internal/repository"
	"github.com/spec-kit/expense-claim-service/internal/service"
	"github.com/spec-kit/expense-claim-service/internal/storage"
	"github.com/spec-kit/expense-claim-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, postgres.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewAsyncDispatcher(256, logger)
	defer dispatcher.Close()

	pool := postgres.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	claimRepo := repository.NewClaimRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	tokenStore := repository.NewRefreshTokenStore(redisConn.Client)

	receipts, err := storage.NewDiskReceiptStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   userRepo,
		TokenStore: tokenStore,
		Tokens:     tokenManager,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(cfg.Auth, cfg.Employees, service.UserDependencies{
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	claimService := service.NewClaimService(cfg.Claims, service.ClaimDependencies{
		ClaimRepo:  claimRepo,
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
	})
	auditService := service.NewAuditService(auditRepo, logger, metrics)
	worker.RegisterAuditWorker(dispatcher, auditService)

	bootstrap := service.NewBootstrapService(cfg.Auth, cfg.Employees, cfg.Bootstrap, userRepo, dispatcher, logger)
	if err := bootstrap.Run(ctx); err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}

	app := httpapi.NewServer(httpapi.RouterDeps{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		AuthMW:  auth.NewAuthMiddleware(tokenManager, userRepo),
		Health:  handlers.NewHealthHandler(postgres, cfg.App.Version),
		Auth:    handlers.NewAuthHandler(authService),
		Users:   handlers.NewUsersHandler(userService),
		Claims:  handlers.NewClaimsHandler(claimService, receipts),
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.Shutdown()
	}()

	logger.Info("starting server", zap.String("addr", cfg.App.Addr()))
	if err := app.Listen(cfg.App.Addr()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
