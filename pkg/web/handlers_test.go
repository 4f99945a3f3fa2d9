package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/engine"
	"github.com/netpilot/netpilot/pkg/engine/lock"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence/file"
	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/provider/static"
	"github.com/netpilot/netpilot/pkg/services"
	"github.com/netpilot/netpilot/pkg/web"
)

type testServices struct {
	workflows  *services.Workflow
	executions *services.Execution
}

func setupTestApp(t *testing.T) (*fiber.App, *testServices) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := provider.NewRegistry(logger)
	registry.Register(static.NewFactory())

	eng := engine.New(persistence, catalog.NewMemory(), registry, nil, lock.NewMemoryLocker(), logger, nil)

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
	w.Get("/slug/:slug", handlers.GetWorkflowBySlug)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/executions", handlers.CreateExecution)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/steps", handlers.GetExecutionSteps)
	e.Post("/:id/approve", handlers.ApproveExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)
	e.Post("/:id/operation", handlers.RequestExecutionOperation)

	return app, &testServices{workflows: workflowService, executions: executionService}
}

func jsonRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()

	var buf []byte

	if str, ok := body.(string); ok {
		buf = []byte(str)
	} else if body != nil {
		var err error

		buf, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, url, bytes.NewBuffer(buf))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func createWorkflowRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:    "Provision VLAN",
		Slug:    "provision-vlan",
		Enabled: true,
		Steps: []*models.WorkflowStep{
			{Order: 1, Name: "render", Type: models.StepTypeTask, TaskID: uuid.NewString()},
			{Order: 2, Name: "notify", Type: models.StepTypeNotification},
		},
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name:           "successful creation",
			requestBody:    createWorkflowRequest(),
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var workflow models.Workflow

				require.NoError(t, json.Unmarshal(body, &workflow))
				assert.NotEmpty(t, workflow.ID)
				assert.Equal(t, "Provision VLAN", workflow.Name)
				assert.Equal(t, "provision-vlan", workflow.Slug)
				assert.Len(t, workflow.Steps, 2)
			},
		},
		{
			name: "validation error - name too short",
			requestBody: func() web.CreateWorkflowRequest {
				req := createWorkflowRequest()
				req.Name = "ab"

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - slug not lowercase",
			requestBody: func() web.CreateWorkflowRequest {
				req := createWorkflowRequest()
				req.Slug = "Provision-VLAN"

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate step order",
			requestBody: func() web.CreateWorkflowRequest {
				req := createWorkflowRequest()
				req.Steps[1].Order = 1

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows", tt.requestBody))
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	t.Parallel()

	app, svc := setupTestApp(t)

	workflow := &models.Workflow{
		Name: "Provision VLAN", Slug: "provision-vlan", Enabled: true,
	}
	created, err := svc.workflows.Save(context.Background(), workflow)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+created.ID, nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/slug/provision-vlan", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_UpdateWorkflow(t *testing.T) {
	t.Parallel()

	app, svc := setupTestApp(t)

	created, err := svc.workflows.Save(context.Background(), &models.Workflow{
		Name: "Original Name", Slug: "original", Description: "Original Description",
	})
	require.NoError(t, err)

	req := jsonRequest(t, http.MethodPatch, "/workflows/"+created.ID, web.UpdateWorkflowRequest{
		Name: stringPtr("Updated Name"),
	})

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var workflow models.Workflow

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))
	assert.Equal(t, "Updated Name", workflow.Name)
	assert.Equal(t, "Original Description", workflow.Description)

	// Unknown workflow.
	req = jsonRequest(t, http.MethodPatch, "/workflows/missing", web.UpdateWorkflowRequest{
		Name: stringPtr("New Name"),
	})

	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	app, svc := setupTestApp(t)

	created, err := svc.workflows.Save(context.Background(), &models.Workflow{
		Name: "Provision VLAN", Slug: "provision-vlan",
	})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+created.ID, nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+created.ID, nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_CreateExecution(t *testing.T) {
	t.Parallel()

	validRequest := web.CreateExecutionRequest{
		Targets: []models.TargetRef{{Kind: "device", ID: "dev-1"}},
	}

	tests := []struct {
		name           string
		workflow       *models.Workflow
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name: "successful creation",
			workflow: &models.Workflow{
				Name: "Provision VLAN", Slug: "provision-vlan", Enabled: true,
			},
			requestBody:    validRequest,
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var execution models.Execution

				require.NoError(t, json.Unmarshal(body, &execution))
				assert.NotEmpty(t, execution.ID)
				assert.Equal(t, models.ExecutionPending, execution.Status)
				assert.Equal(t, models.OperationApply, execution.Operation)
			},
		},
		{
			name: "disabled workflow",
			workflow: &models.Workflow{
				Name: "Provision VLAN", Slug: "provision-vlan", Enabled: false,
			},
			requestBody:    validRequest,
			expectedStatus: http.StatusConflict,
		},
		{
			name: "missing targets",
			workflow: &models.Workflow{
				Name: "Provision VLAN", Slug: "provision-vlan", Enabled: true,
			},
			requestBody:    web.CreateExecutionRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "schedule not allowed",
			workflow: &models.Workflow{
				Name: "Provision VLAN", Slug: "provision-vlan", Enabled: true,
			},
			requestBody: web.CreateExecutionRequest{
				Targets:    []models.TargetRef{{Kind: "device", ID: "dev-1"}},
				Recurrence: "0 3 * * *",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "workflow not found",
			workflow:       nil,
			requestBody:    validRequest,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, svc := setupTestApp(t)

			workflowID := "missing"

			if tt.workflow != nil {
				created, err := svc.workflows.Save(context.Background(), tt.workflow)
				require.NoError(t, err)

				workflowID = created.ID
			}

			req := jsonRequest(t, http.MethodPost, "/workflows/"+workflowID+"/executions", tt.requestBody)

			resp, err := app.Test(req)
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_ExecutionLifecycle(t *testing.T) {
	t.Parallel()

	app, svc := setupTestApp(t)

	workflow, err := svc.workflows.Save(context.Background(), &models.Workflow{
		Name: "Provision VLAN", Slug: "provision-vlan", Enabled: true, ApprovalRequired: true,
	})
	require.NoError(t, err)

	created, err := svc.executions.Create(context.Background(), &models.Execution{
		WorkflowID: workflow.ID,
		Targets:    []models.TargetRef{{Kind: "device", ID: "dev-1"}},
	})
	require.NoError(t, err)

	// Approval without a body is a validation error.
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/executions/"+created.ID+"/approve", web.ApproveExecutionRequest{}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/executions/"+created.ID+"/approve", web.ApproveExecutionRequest{
		ApprovedBy: "alice",
	}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/executions/"+created.ID+"/cancel", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// A second cancel hits a terminal execution.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/executions/"+created.ID+"/cancel", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+created.ID+"/steps", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/executions/missing", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func stringPtr(s string) *string {
	return &s
}
