package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/service"
)

// ServerDependencies is everything needed to assemble the HTTP app.
type ServerDependencies struct {
	Config         *config.Config
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Services       *service.Services
	LimiterStorage fiber.Storage
	// Required dependencies gate readiness; Optional ones are only reported.
	Required map[string]handlers.Pinger
	Optional map[string]handlers.Pinger
}

// NewServer builds the fiber app with middlewares and routes registered.
func NewServer(deps ServerDependencies) *fiber.App {
	mc := MiddlewareConfig{Logger: deps.Logger, Metrics: deps.Metrics, Config: deps.Config}
	app := fiber.New(FiberConfig(mc))
	RegisterMiddlewares(app, mc)

	svc := deps.Services
	RegisterRoutes(app, RouteConfig{
		Config:         deps.Config,
		Metrics:        deps.Metrics,
		LimiterStorage: deps.LimiterStorage,
		AuthMiddleware: auth.NewAuthMiddleware(svc.Auth),
		Health:         handlers.NewHealthHandler(deps.Config.App.Name, deps.Config.App.Version, deps.Required, deps.Optional),
		Auth:           handlers.NewAuthHandler(svc.Auth),
		Users:          handlers.NewUsersHandler(svc.Users),
		Tickets:        handlers.NewTicketsHandler(svc.Tickets),
		Comments:       handlers.NewCommentsHandler(svc.Comments),
		TimeEntries:    handlers.NewTimeEntriesHandler(svc.TimeEntries),
		Companies:      handlers.NewCompaniesHandler(svc.Companies),
		Audit:          handlers.NewAuditHandler(svc.Audit),
	})
	return app
}
