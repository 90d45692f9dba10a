package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-activities-api/internal/config"
	"github.com/noah-isme/gema-activities-api/internal/handler"
	"github.com/noah-isme/gema-activities-api/internal/observability"
	"github.com/noah-isme/gema-activities-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Enrollments          service.EnrollmentService
	ActivityHandler      *handler.ActivityHandler
	EnrollmentLogHandler *handler.EnrollmentLogHandler
	RateLimiter          fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Enrollments))

	if deps.EnrollmentLogHandler != nil {
		deps.EnrollmentLogHandler.Register(api.Group("/enrollments"))
	}

	app.Get("/metrics", observability.MetricsHandler())

	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(app.Group("/activities", rateLimiter))
	}

	if cfg.StaticDir != "" {
		app.Static("/static", cfg.StaticDir)
		app.Get("/", func(c *fiber.Ctx) error {
			return c.Redirect("/static/index.html", fiber.StatusTemporaryRedirect)
		})
	}
}
