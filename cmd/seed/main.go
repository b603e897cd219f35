// Command seed creates or promotes the first ADMIN account.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/persistence"
	"github.com/spec-kit/crm-service/internal/repository"
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

	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN is required; the in-memory store does not outlive this process")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	users := persistence.NewRepositories(pg).Users
	user, created, err := seedAdmin(ctx, users, cfg.Seed, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	logger.Info("admin ready", zap.Int64("user_id", user.ID), zap.String("email", user.Email), zap.Bool("created", created))
}

// seedAdmin creates the admin account, or promotes and re-keys an existing
// account with the same email.
func seedAdmin(ctx context.Context, users repository.UserRepository, seed config.SeedConfig, cost int) (*domain.User, bool, error) {
	if seed.AdminEmail == "" {
		return nil, false, errors.New("SEED_ADMIN_EMAIL is required")
	}
	if err := auth.CheckPassword(seed.AdminPassword); err != nil {
		return nil, false, fmt.Errorf("SEED_ADMIN_PASSWORD: %w", err)
	}

	hash, err := auth.HashPassword(seed.AdminPassword, cost)
	if err != nil {
		return nil, false, err
	}

	existing, err := users.GetByEmail(ctx, seed.AdminEmail)
	switch {
	case err == nil:
		existing.Role = domain.RoleAdmin
		existing.PasswordHash = hash
		if err := users.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, err
	}

	user := &domain.User{
		Name:         seed.AdminName,
		Email:        seed.AdminEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}
