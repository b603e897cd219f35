package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/validation"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// CredentialCheck maps an email/password pair to an identity or
// an INVALID_CREDENTIALS error.
type CredentialCheck func(ctx context.Context, email, password string) (domain.Identity, error)

// RegisterInput describes a new account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned after a successful sign-in.
type LoginResult struct {
	Identity domain.Identity
	Token    string
	Session  *domain.Session
}

// AuthService coordinates registration, sign-in and sign-out.
type AuthService struct {
	users      repository.UserRepository
	sessions   auth.SessionStore
	tokenMgr   *auth.TokenManager
	validator  *validation.Validator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	check      CredentialCheck
	bcryptCost int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo        repository.UserRepository
	SessionStore    auth.SessionStore
	Validator       *validation.Validator
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	CredentialCheck CredentialCheck
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	s := &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionStore,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL()),
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
		bcryptCost: cfg.Auth.BcryptCost,
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	s.check = deps.CredentialCheck
	if s.check == nil {
		s.check = s.VerifyCredentials
	}
	return s
}

// Register creates a USER account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err, "user")
	}

	hash, err := hashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, storeError(err, "user")
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventUserRegistered,
		ActorID:   user.ID,
		SubjectID: user.ID,
	})
	return user, nil
}

// VerifyCredentials is the default credential check. Unknown email and wrong
// password are indistinguishable to the caller; only the log tells them apart.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (domain.Identity, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("login rejected", zap.String("reason", "user_not_found"))
			return domain.Identity{}, apperrors.NewInvalidCredentials()
		}
		return domain.Identity{}, storeError(err, "user")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", zap.String("reason", "password_mismatch"), zap.Int64("user_id", user.ID))
		return domain.Identity{}, apperrors.NewInvalidCredentials()
	}
	return user.Identity(), nil
}

// Login verifies credentials and issues a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := s.validator.Fields(
		validation.Check{Field: "email", Value: email, Tag: "required"},
		validation.Check{Field: "password", Value: password, Tag: "required"},
	); err != nil {
		return nil, err
	}

	identity, err := s.check(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, session, err := s.tokenMgr.Issue(identity)
	if err != nil {
		return nil, apperrors.NewUpstreamFailure("unable to issue session", err)
	}
	s.logger.Info("login succeeded", zap.Int64("user_id", identity.ID))
	return &LoginResult{Identity: identity, Token: token, Session: session}, nil
}

// Logout ends the session before its token expires.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return apperrors.NewUnauthenticated("authentication required")
	}
	if s.sessions == nil {
		return nil
	}
	remaining := time.Until(session.ExpiresAt)
	if err := s.sessions.Revoke(ctx, session.ID, remaining); err != nil {
		return apperrors.NewUpstreamFailure("unable to end session", err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
