package http

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/contact-service/internal/observability"
	apperrors "github.com/spec-kit/contact-service/pkg/util"
)

// MiddlewareConfig bundles global middleware settings.
type MiddlewareConfig struct {
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Timeout        time.Duration
	AllowedOrigins []string
}

// RegisterMiddlewares attaches global middlewares such as CORS, logging, panic recovery and timeouts.
// The app must be created with NewErrorHandler as its ErrorHandler.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	app.Use(requestid.New())
	if len(cfg.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
			AllowCredentials: true,
		}))
	}
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Use(recoverMiddleware(cfg.Logger))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func recoverMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
		}()
		return c.Next()
	}
}

// NewErrorHandler renders every error as {result:false, error, code[, errors]}.
// Internal errors are logged and their cause is never rendered.
func NewErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		domainErr := fromFiberError(err)
		if domainErr == nil {
			domainErr = apperrors.ToDomainError(err)
		}

		path := c.Route().Path
		metrics.RecordError(path, c.Method(), domainErr.Code)
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(domainErr))
		}

		response := fiber.Map{
			"result": false,
			"error":  domainErr.Message,
			"code":   domainErr.Code,
		}
		if len(domainErr.Details) > 0 {
			response["errors"] = domainErr.Details
		}
		return c.Status(domainErr.HTTPStatus).JSON(response)
	}
}

// fromFiberError maps framework errors (unknown route, bad method, oversized body).
func fromFiberError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return nil
	}
	switch {
	case fe.Code == fiber.StatusNotFound:
		return apperrors.NewDomainError(apperrors.CodeNotFound, "Not found.", fe.Code, nil)
	case fe.Code >= fiber.StatusInternalServerError:
		return apperrors.ToDomainError(apperrors.NewInternalError(err))
	default:
		return apperrors.NewDomainError(apperrors.CodeValidation, fe.Message, fe.Code, nil)
	}
}
