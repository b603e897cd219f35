package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-service/internal/api/http"
	"github.com/spec-kit/crm-service/internal/api/http/handlers"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/imagestore"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/persistence"
	"github.com/spec-kit/crm-service/internal/service"
	"github.com/spec-kit/crm-service/internal/validation"
	"github.com/spec-kit/crm-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	repos := persistence.NewRepositories(pg)
	logger.Info("credential store ready", zap.String("backend", repos.Backend))

	sessions := redis.SessionStore()
	validator := validation.New()
	dispatcher := events.NewInMemoryDispatcher(logger)
	images := imagestore.NewLocalStore(cfg.Avatar.StorageDir, cfg.Avatar.PublicBaseURL)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:     repos.Users,
		SessionStore: sessions,
		Validator:    validator,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	policy := auth.NewPolicy(authService.TokenManager(), sessions, repos.Users, logger)

	profileService := service.NewProfileService(*cfg, service.ProfileDependencies{
		UserRepo:   repos.Users,
		Policy:     policy,
		Images:     images,
		Validator:  validator,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	customerService := service.NewCustomerService(service.CustomerDependencies{
		CustomerRepo: repos.Customers,
		Policy:       policy,
		Validator:    validator,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	adminService := service.NewAdminService(*cfg, service.AdminDependencies{
		UserRepo:   repos.Users,
		Policy:     policy,
		Validator:  validator,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	auditWorker := worker.NewAuditWorker(service.NewAuditService(logger), logger, 0)
	worker.StartAuditWorker(ctx, dispatcher, auditWorker)

	var metrics *observability.Metrics
	if cfg.App.MetricsEnabled {
		metrics = observability.NewMetrics("crm")
	}

	app := httptransport.NewApp(*cfg, logger)
	httptransport.RegisterMiddlewares(app, *cfg, logger, metrics)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService, cfg.Session),
		Profile:        handlers.NewProfileHandler(profileService, cfg.Avatar.MaxBytes),
		Customers:      handlers.NewCustomersHandler(customerService),
		AdminUsers:     handlers.NewAdminUsersHandler(adminService),
		AuthMiddleware: auth.NewAuthMiddleware(policy, cfg.Session.CookieName),
		Metrics:        metrics,
		AvatarDir:      images.BasePath(),
		AvatarURL:      cfg.Avatar.PublicBaseURL,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	auditWorker.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
