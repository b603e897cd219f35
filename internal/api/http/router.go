package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/api/http/handlers"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Profile        *handlers.ProfileHandler
	Customers      *handlers.CustomersHandler
	AdminUsers     *handlers.AdminUsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	AvatarDir      string
	AvatarURL      string
}

// NewApp creates the fiber app with limits sized for avatar uploads.
func NewApp(cfg config.Config, logger *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             cfg.Avatar.MaxBytes + 1024*1024,
		ErrorHandler:          ErrorHandler(logger),
		DisableStartupMessage: true,
	})
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}
	if cfg.AvatarDir != "" && cfg.AvatarURL != "" {
		app.Static(cfg.AvatarURL, cfg.AvatarDir, fiber.Static{Browse: false})
	}

	requireSession := cfg.AuthMiddleware.Handle

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/logout", requireSession, cfg.Users.Logout)
	authGroup.Get("/session", requireSession, cfg.Users.Session)

	profile := app.Group("/profile", requireSession)
	profile.Get("/", cfg.Profile.Get)
	profile.Patch("/", cfg.Profile.Update)
	profile.Post("/avatar", cfg.Profile.UploadAvatar)

	customers := app.Group("/customers", requireSession)
	customers.Get("/", cfg.Customers.List)
	customers.Post("/", cfg.Customers.Create)
	customers.Get("/:id", cfg.Customers.Get)
	customers.Patch("/:id", cfg.Customers.Update)
	customers.Delete("/:id", cfg.Customers.Delete)

	admin := app.Group("/admin", requireSession, cfg.AuthMiddleware.RequireRole(domain.RoleAdmin))
	admin.Get("/users", cfg.AdminUsers.List)
	admin.Get("/users/:id", cfg.AdminUsers.Get)
	admin.Patch("/users/:id", cfg.AdminUsers.Update)
	admin.Delete("/users/:id", cfg.AdminUsers.Delete)
}
