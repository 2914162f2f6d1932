package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/contact-service/internal/api/http/handlers"
	"github.com/spec-kit/contact-service/internal/auth"
	"github.com/spec-kit/contact-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Contacts       *handlers.ContactsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimit      fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limit := cfg.RateLimit
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	users := app.Group("/Users")
	users.Post("/Register", limit, cfg.Users.Register)
	users.Post("/Login", limit, cfg.Users.Login)
	users.Post("/Tokens/Refresh", limit, cfg.Users.Refresh)
	users.Post("/Logout", limit, cfg.Users.Logout)

	users.Get("", cfg.AuthMiddleware.Handle, cfg.Users.Me)
	users.Put("", cfg.AuthMiddleware.Handle, cfg.Users.UpdatePassword)
	users.Put("/Details", cfg.AuthMiddleware.Handle, cfg.Users.UpdateDetails)

	contacts := app.Group("/Contacts", cfg.AuthMiddleware.Handle)
	contacts.Post("", cfg.Contacts.Create)
	contacts.Get("", cfg.Contacts.List)
	contacts.Get("/:id", cfg.Contacts.Get)
	contacts.Put("/:id", cfg.Contacts.Update)
	contacts.Delete("/:id", cfg.Contacts.Delete)
}
