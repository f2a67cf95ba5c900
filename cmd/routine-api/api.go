// Package main provides the Routine API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/routinehq/routine/pkg/compiler"
	"github.com/routinehq/routine/pkg/connector"
	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/web"
)

type API struct {
	logger   *slog.Logger
	store    persistence.Persistence
	registry *connector.Registry
	eventBus eventbus.EventBus
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	registry *connector.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:   logger,
		store:    store,
		registry: registry,
		eventBus: eventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	eng := engine.New(
		a.store,
		a.registry,
		a.registry,
		compiler.NewStatic(a.logger),
		a.eventBus,
		a.logger,
	)

	handlers := web.NewAPIHandlers(eng, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Routine API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
