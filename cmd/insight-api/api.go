// Package main provides the Insight API server, which answers questions in-process and streams
// their progress.
package main

import (
	"log/slog"

	"github.com/dukex/insight/pkg/broadcast"
	"github.com/dukex/insight/pkg/services"
	"github.com/dukex/insight/pkg/tracker"
	"github.com/dukex/insight/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	queries     *services.Query
	executions  *tracker.Registry
	broadcaster *broadcast.Broadcaster
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	queries *services.Query,
	executions *tracker.Registry,
	broadcaster *broadcast.Broadcaster,
) *API {
	return &API{
		logger:      logger,
		queries:     queries,
		executions:  executions,
		broadcaster: broadcaster,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.queries, a.executions, a.broadcaster, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Insight API")
	})

	handlers.Register(app)

	return app
}
