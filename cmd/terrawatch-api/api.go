// Package main provides the Terrawatch API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/registry"
	"github.com/terrawatch/terrawatch/pkg/services"
	"github.com/terrawatch/terrawatch/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		registry:    reg,
		eventBus:    eventBus,
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflowService(a.persistence, a.registry, a.logger)
	runService := services.NewRunService(a.persistence, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(workflowService, runService, a.persistence, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Terrawatch API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
