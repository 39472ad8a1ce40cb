package http

import (
	"context"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// MiddlewareConfig bundles what the global middleware chain needs.
type MiddlewareConfig struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Config  *config.Config
}

// FiberConfig returns the app settings shared by the server and tests.
func FiberConfig(mc MiddlewareConfig) fiber.Config {
	return fiber.Config{
		AppName:      mc.Config.App.Name,
		ErrorHandler: ErrorHandler(mc.Logger, mc.Metrics, mc.Config.App.IsProduction()),
	}
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, mc MiddlewareConfig) {
	production := mc.Config.App.IsProduction()

	app.Use(requestid.New())
	app.Use(fiberrecover.New(fiberrecover.Config{EnableStackTrace: !production}))
	app.Use(helmet.New())
	app.Use(corsMiddleware(mc.Config))
	app.Use(requestInfoMiddleware())
	if timeout := mc.Config.App.RequestTimeout(); timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(mc.Logger, mc.Metrics, production))
	app.Use(observability.RequestLogger(mc.Logger, mc.Metrics))
}

func corsMiddleware(cfg *config.Config) fiber.Handler {
	origins := cfg.AllowedOrigins()
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowCredentials: len(origins) > 0,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		MaxAge:           86400,
	})
}

// requestInfoMiddleware makes the client address available to the audit
// recorder through the request context.
func requestInfoMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(audit.WithRequestInfo(c.UserContext(), c.IP(), c.Get(fiber.HeaderUserAgent)))
		return c.Next()
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

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, production bool) fiber.Handler {
	handle := ErrorHandler(logger, metrics, production)
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				_ = handle(c, err)
				err = nil
			}
		}()
		return c.Next()
	}
}

// ErrorHandler renders any error as the standard error envelope. Details are
// dropped in production.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		domainErr := apperrors.ToDomainError(err)
		metrics.RecordError(c.Path(), c.Method(), domainErr.Code)

		body := fiber.Map{
			"code":    domainErr.Code,
			"message": domainErr.Message,
		}
		if len(domainErr.Details) > 0 && !production {
			body["details"] = domainErr.Details
		}
		if domainErr.HTTPStatus >= 500 {
			logger.Error("request failed", zap.Error(domainErr), zap.String("path", c.Path()))
		}
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
	}
}

// RateLimiter builds a per-IP limiter whose counters are namespaced by
// bucket. Loopback and private addresses are never limited.
func RateLimiter(bucket string, max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Next:         func(c *fiber.Ctx) bool { return isInternalIP(c.IP()) },
		Max:          max,
		Expiration:   window,
		Storage:      storage,
		KeyGenerator: func(c *fiber.Ctx) string { return bucket + ":" + c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewRateLimited("")
		},
	})
}

func isInternalIP(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
