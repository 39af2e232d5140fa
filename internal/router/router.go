package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/essaylab/essay-eval-api/internal/config"
	"github.com/essaylab/essay-eval-api/internal/handler"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	RevisionHandler   *handler.RevisionHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SubmissionHandler != nil {
		essays := api.Group("/essays", jwtMiddleware)
		deps.SubmissionHandler.Register(essays)
	}

	if deps.RevisionHandler != nil {
		revisions := api.Group("/revisions", jwtMiddleware)
		deps.RevisionHandler.Register(revisions)
	}
}
