package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Config         *config.Config
	Metrics        *observability.Metrics
	// LimiterStorage backs the rate limiter counters. Nil uses process memory.
	LimiterStorage fiber.Storage
	AuthMiddleware *auth.AuthMiddleware

	Health      *handlers.HealthHandler
	Auth        *handlers.AuthHandler
	Users       *handlers.UsersHandler
	Tickets     *handlers.TicketsHandler
	Comments    *handlers.CommentsHandler
	TimeEntries *handlers.TimeEntriesHandler
	Companies   *handlers.CompaniesHandler
	Audit       *handlers.AuditHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	rl := cfg.Config.RateLimit
	api := app.Group("/api")
	credentials := func(c *fiber.Ctx) error { return c.Next() }
	if rl.Enabled {
		credentials = RateLimiter("auth", rl.AuthMax, time.Duration(rl.AuthWindowMin)*time.Minute, cfg.LimiterStorage)
		api.Use(RateLimiter("api", rl.APIMax, time.Duration(rl.APIWindowSec)*time.Second, cfg.LimiterStorage))
	}
	// limited requests never reach the user lookup
	api.Use(cfg.AuthMiddleware.Handle)
	requireAuth := auth.RequireAuthenticated()

	authGroup := api.Group("/auth")
	authGroup.Post("/login", credentials, cfg.Auth.Login)
	authGroup.Post("/register", credentials, cfg.Auth.Register)
	authGroup.Post("/refresh", credentials, cfg.Auth.Refresh)
	authGroup.Post("/logout", requireAuth, cfg.Auth.Logout)

	api.Get("/me", requireAuth, cfg.Users.Me)
	api.Patch("/me", requireAuth, cfg.Users.UpdateProfile)

	tickets := api.Group("/tickets", requireAuth)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/mine", cfg.Tickets.Mine)
	tickets.Get("/assigned", cfg.Tickets.Assigned)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", cfg.Tickets.Delete)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Get("/:id/comments", cfg.Comments.List)
	tickets.Post("/:id/comments", cfg.Comments.Create)

	comments := api.Group("/comments", requireAuth)
	comments.Get("/:id", cfg.Comments.Get)
	comments.Patch("/:id", cfg.Comments.Update)
	comments.Delete("/:id", cfg.Comments.Delete)

	entries := api.Group("/time-entries", requireAuth)
	entries.Get("/", cfg.TimeEntries.List)
	entries.Post("/", cfg.TimeEntries.Create)
	entries.Get("/mine", cfg.TimeEntries.Mine)
	entries.Get("/:id", cfg.TimeEntries.Get)
	entries.Patch("/:id", cfg.TimeEntries.Update)
	entries.Delete("/:id", cfg.TimeEntries.Delete)

	companies := api.Group("/companies", requireAuth)
	companies.Get("/", cfg.Companies.List)
	companies.Post("/", cfg.Companies.Create)
	companies.Get("/:id", cfg.Companies.Get)
	companies.Patch("/:id", cfg.Companies.Update)
	companies.Delete("/:id", cfg.Companies.Delete)
	companies.Get("/:id/contacts", cfg.Companies.Contacts)

	contacts := api.Group("/contacts", requireAuth)
	contacts.Post("/", cfg.Companies.CreateContact)
	contacts.Get("/me", cfg.Companies.MyContact)
	contacts.Get("/:id", cfg.Companies.GetContact)
	contacts.Patch("/:id", cfg.Companies.UpdateContact)
	contacts.Delete("/:id", cfg.Companies.DeleteContact)

	users := api.Group("/users", requireAuth)
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)

	api.Get("/audit-logs", requireAuth, cfg.Audit.List)
}
