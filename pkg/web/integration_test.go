//go:build integration

package web_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/engine"
	"github.com/netpilot/netpilot/pkg/engine/lock"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence/postgresql"
	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/provider/static"
	"github.com/netpilot/netpilot/pkg/services"
	"github.com/netpilot/netpilot/pkg/web"
)

func setupTestDB(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_netpilot",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbURL := fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_netpilot?sslmode=disable", host, port.Port())

	// Give the server a moment after the ready log before migrating.
	time.Sleep(2 * time.Second)

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return dbURL, cleanup
}

func setupIntegrationApp(t *testing.T, dbURL string) (*fiber.App, *testServices) {
	t.Helper()

	logger := slog.Default()

	persistence, err := postgresql.NewPersistence(context.Background(), logger, dbURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = persistence.Close(context.Background()) })

	cat := catalog.NewMemory()
	cat.AddDevice(&catalog.Device{
		ID: "dev-1", Name: "sw-01", Manufacturer: "arista", Platform: "eos",
	})

	registry := provider.NewRegistry(logger)
	registry.Register(static.NewFactory())

	eng := engine.New(persistence, cat, registry, nil, lock.NewMemoryLocker(), logger, nil)

	workflowService := services.NewWorkflow(persistence)
	taskService := services.NewTask(persistence)
	providerService := services.NewProvider(persistence, registry)
	executionService := services.NewExecution(persistence, eng, nil)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(workflowService, taskService, providerService, executionService, validate, registry)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/executions", handlers.CreateExecution)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/steps", handlers.GetExecutionSteps)
	e.Post("/:id/cancel", handlers.CancelExecution)

	return app, &testServices{workflows: workflowService, executions: executionService}
}

func TestIntegration_WorkflowExecutionRoundTrip(t *testing.T) {
	dbURL, cleanup := setupTestDB(t)
	defer cleanup()

	app, _ := setupIntegrationApp(t, dbURL)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows", createWorkflowRequest()))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow models.Workflow

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))
	require.NotEmpty(t, workflow.ID)

	// Reload through the API to prove the steps survived the round trip.
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/workflows/"+workflow.ID, nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reloaded models.Workflow

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reloaded))
	assert.Len(t, reloaded.Steps, 2)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/executions", web.CreateExecutionRequest{
		Targets: []models.TargetRef{{Kind: "device", ID: "dev-1"}},
	}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var execution models.Execution

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&execution))
	assert.Equal(t, models.ExecutionPending, execution.Status)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/executions/"+execution.ID+"/cancel", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/executions/"+execution.ID, nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var cancelled models.Execution

	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, models.ExecutionCancelled, cancelled.Status)
}
