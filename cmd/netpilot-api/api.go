// Package main provides the Netpilot API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/netpilot/netpilot/pkg/engine"
	"github.com/netpilot/netpilot/pkg/eventbus"
	"github.com/netpilot/netpilot/pkg/persistence"
	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/services"
	"github.com/netpilot/netpilot/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *provider.Registry
	engine      *engine.Engine
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *provider.Registry,
	eng *engine.Engine,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		engine:      eng,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence)
	taskService := services.NewTask(a.persistence)
	providerService := services.NewProvider(a.persistence, a.registry)
	executionService := services.NewExecution(a.persistence, a.engine, a.eventBus)

	handlers := web.NewAPIHandlers(
		workflowService,
		taskService,
		providerService,
		executionService,
		a.validate,
		a.registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Netpilot API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/slug/:slug", handlers.GetWorkflowBySlug)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/executions", handlers.CreateExecution)

	t := app.Group("/tasks")
	t.Get("/", handlers.GetTasks)
	t.Post("/", handlers.SaveTask)
	t.Get("/:id", handlers.GetTask)
	t.Delete("/:id", handlers.DeleteTask)
	t.Get("/:id/implementations", handlers.GetTaskImplementations)
	t.Post("/:id/implementations", handlers.SaveTaskImplementation)
	t.Delete("/:id/implementations/:implementationId", handlers.DeleteTaskImplementation)

	p := app.Group("/providers")
	p.Get("/definitions", handlers.GetProviderDefinitions)
	p.Post("/definitions", handlers.SaveProviderDefinition)
	p.Get("/definitions/:id", handlers.GetProviderDefinition)
	p.Delete("/definitions/:id", handlers.DeleteProviderDefinition)
	p.Get("/instances", handlers.GetProviderInstances)
	p.Post("/instances", handlers.SaveProviderInstance)
	p.Get("/instances/:id", handlers.GetProviderInstance)
	p.Delete("/instances/:id", handlers.DeleteProviderInstance)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/steps", handlers.GetExecutionSteps)
	e.Post("/:id/approve", handlers.ApproveExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)
	e.Post("/:id/operation", handlers.RequestExecutionOperation)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
