package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// UsersHandler exposes registration and session endpoints.
type UsersHandler struct {
	auth   *service.AuthService
	cookie config.SessionConfig
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, cookie config.SessionConfig) *UsersHandler {
	return &UsersHandler{auth: authService, cookie: cookie}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Login handles POST /auth/login. The token is set as an HttpOnly cookie and
// also returned for bearer-token clients.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setCookie(c, result.Token, result.Session.ExpiresAt)
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewIdentityResponse(result.Identity),
			"auth": dto.AuthResponse{Token: result.Token, ExpiresAt: result.Session.ExpiresAt},
		},
	})
}

// Logout handles POST /auth/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	if err := h.auth.Logout(c.UserContext(), session); err != nil {
		return err
	}
	h.clearCookie(c)
	return c.SendStatus(http.StatusNoContent)
}

// Session handles GET /auth/session.
func (h *UsersHandler) Session(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

func (h *UsersHandler) setCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.CookieDomain,
		Expires:  expires,
		Secure:   h.cookie.CookieSecure,
		HTTPOnly: true,
		SameSite: sameSite(h.cookie.SameSite),
	})
}

func (h *UsersHandler) clearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   h.cookie.CookieSecure,
		HTTPOnly: true,
		SameSite: sameSite(h.cookie.SameSite),
	})
}

func sameSite(v string) string {
	switch strings.ToLower(v) {
	case "strict":
		return fiber.CookieSameSiteStrictMode
	case "none":
		return fiber.CookieSameSiteNoneMode
	default:
		return fiber.CookieSameSiteLaxMode
	}
}
