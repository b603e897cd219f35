package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	}
	return "unknown"
}

// Err maps a denial to the error returned to clients. Allow maps to nil.
func (d Decision) Err(message string) error {
	switch d {
	case Allow:
		return nil
	case DenyUnauthenticated:
		return apperrors.NewUnauthenticated("authentication required")
	default:
		return apperrors.NewForbidden(message)
	}
}

// Policy is the single authorization component every handler goes through:
// authenticate, then role or ownership, then the self-action guards.
type Policy struct {
	tokens   *TokenManager
	sessions SessionStore
	users    repository.UserRepository
	logger   *zap.Logger
}

// NewPolicy constructs the policy.
func NewPolicy(tokens *TokenManager, sessions SessionStore, users repository.UserRepository, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{tokens: tokens, sessions: sessions, users: users, logger: logger}
}

// Authenticate resolves a raw session token. It fails closed: a nil session
// means "not authenticated" and no error ever escapes.
//
// Role and avatar are re-read from the user record on every call, so an admin's
// role change takes effect on the target's next request.
func (p *Policy) Authenticate(ctx context.Context, token string) *domain.Session {
	if token == "" || p == nil || p.tokens == nil {
		return nil
	}

	claims, err := p.tokens.ParseToken(token)
	if err != nil {
		p.logger.Debug("session token rejected", zap.Error(err))
		return nil
	}
	userID, err := claims.UserID()
	if err != nil {
		p.logger.Debug("session subject malformed", zap.String("subject", claims.Subject))
		return nil
	}

	if p.sessions != nil {
		revoked, err := p.sessions.IsRevoked(ctx, claims.ID)
		if err != nil {
			p.logger.Warn("session store unavailable; denying", zap.Error(err))
			return nil
		}
		if revoked {
			return nil
		}
	}

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			p.logger.Warn("session user lookup failed; denying", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil
	}

	session := &domain.Session{
		ID:        claims.ID,
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		AvatarURL: user.AvatarURL,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session
}

// RequireRole reports whether the session holds exactly role.
func (p *Policy) RequireRole(session *domain.Session, role domain.Role) bool {
	return session != nil && session.Role == role
}

// RequireOwnership reports whether the session owns a resource.
func (p *Policy) RequireOwnership(session *domain.Session, ownerID int64) bool {
	return session != nil && session.UserID == ownerID
}

// ForbidSelfRoleChange reports whether the update must be blocked: the caller
// targets their own account and the update carries a role, whatever its value.
func (p *Policy) ForbidSelfRoleChange(session *domain.Session, targetUserID int64, update domain.UserUpdate) bool {
	return session != nil && session.UserID == targetUserID && update.HasRole()
}

// ForbidSelfDeletion reports whether the caller is deleting their own account.
func (p *Policy) ForbidSelfDeletion(session *domain.Session, targetUserID int64) bool {
	return session != nil && session.UserID == targetUserID
}

// AuthorizeRole combines authentication and the role check.
func (p *Policy) AuthorizeRole(session *domain.Session, role domain.Role) Decision {
	if session == nil {
		return DenyUnauthenticated
	}
	if !p.RequireRole(session, role) {
		return DenyForbidden
	}
	return Allow
}

// AuthorizeOwner combines authentication and the ownership check.
func (p *Policy) AuthorizeOwner(session *domain.Session, ownerID int64) Decision {
	if session == nil {
		return DenyUnauthenticated
	}
	if !p.RequireOwnership(session, ownerID) {
		return DenyForbidden
	}
	return Allow
}
