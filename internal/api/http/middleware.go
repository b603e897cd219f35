package http

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/observability"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const avatarPath = "/profile/avatar"

// RegisterMiddlewares attaches global middlewares. The request logger wraps the
// error middleware so it records the status actually written.
func RegisterMiddlewares(app *fiber.App, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	origins := strings.Join(cfg.CORS.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
		// Cookies cannot be shared with a wildcard origin.
		AllowCredentials: origins != "" && origins != "*",
	}))
	if timeout := cfg.App.RequestTimeout(); timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := writeError(c, logger, err)
				metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)
				err = nil
			}
		}()
		return c.Next()
	}
}

// ErrorHandler is the fiber fallback for errors raised outside the middleware
// chain, such as an oversized body rejected by the server itself.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		writeError(c, logger, err)
		return nil
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, err error) *apperrors.DomainError {
	domainErr := toDomainError(err, c.Path())
	response := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		response["details"] = domainErr.Details
	}
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("code", domainErr.Code),
			zap.String("path", c.Path()),
			zap.Error(errors.Unwrap(domainErr)))
	}
	_ = c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": response})
	return domainErr
}

// toDomainError also maps fiber's own errors (unknown route, bad method,
// oversized body) so they keep their status instead of becoming a 500.
// A body over the server limit is a 400 like any other oversized input; on the
// avatar route it is reported against the avatar field.
func toDomainError(err error, path string) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch {
		case fiberErr.Code == fiber.StatusRequestEntityTooLarge && strings.HasSuffix(path, avatarPath):
			return apperrors.ToDomainError(apperrors.NewFieldError("avatar", "file is too large"))
		case fiberErr.Code == fiber.StatusRequestEntityTooLarge:
			return apperrors.NewDomainError(apperrors.CodeBadRequest, "request body too large", fiber.StatusBadRequest, nil)
		case fiberErr.Code == fiber.StatusNotFound:
			return apperrors.NewDomainError(apperrors.CodeNotFound, "route not found", fiberErr.Code, nil)
		case fiberErr.Code == fiber.StatusUnauthorized:
			return apperrors.NewDomainError(apperrors.CodeUnauthenticated, fiberErr.Message, fiberErr.Code, nil)
		case fiberErr.Code == fiber.StatusForbidden:
			return apperrors.NewDomainError(apperrors.CodeForbidden, fiberErr.Message, fiberErr.Code, nil)
		case fiberErr.Code >= 400 && fiberErr.Code < 500:
			return apperrors.NewDomainError(apperrors.CodeBadRequest, fiberErr.Message, fiberErr.Code, nil)
		}
	}
	return apperrors.ToDomainError(err)
}
