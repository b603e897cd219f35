package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/domain"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const sessionKey = "auth_session"

// AuthMiddleware resolves the caller's session from the bearer header or the
// session cookie.
type AuthMiddleware struct {
	policy     *Policy
	cookieName string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(policy *Policy, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{policy: policy, cookieName: cookieName}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	session := m.policy.Authenticate(c.UserContext(), m.tokenFrom(c))
	if session == nil {
		return apperrors.NewUnauthenticated("authentication required")
	}
	c.Locals(sessionKey, session)
	return c.Next()
}

// RequireRole ensures the authenticated session holds exactly role.
func (m *AuthMiddleware) RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, _ := SessionFromContext(c)
		if err := m.policy.AuthorizeRole(session, role).Err(strings.ToLower(string(role)) + " role required"); err != nil {
			return err
		}
		return c.Next()
	}
}

func (m *AuthMiddleware) tokenFrom(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if m.cookieName != "" {
		return c.Cookies(m.cookieName)
	}
	return ""
}

// SessionFromContext retrieves the authenticated session.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*domain.Session)
	return session, ok && session != nil
}
