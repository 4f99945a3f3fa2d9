package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/services"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	taskService      *services.Task
	providerService  *services.Provider
	executionService *services.Execution
	validator        *validator.Validate
	registry         *provider.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	taskService *services.Task,
	providerService *services.Provider,
	executionService *services.Execution,
	validator *validator.Validate,
	registry *provider.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		taskService:      taskService,
		providerService:  providerService,
		executionService: executionService,
		validator:        validator,
		registry:         registry,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Netpilot API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Netpilot API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetWorkflowBySlug(c fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return badRequest(c, "Workflow slug is required")
	}

	workflow, err := h.workflowService.GetBySlug(c.Context(), slug)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		Name:             req.Name,
		Slug:             req.Slug,
		Description:      req.Description,
		Category:         req.Category,
		Version:          req.Version,
		Enabled:          req.Enabled,
		ApprovalRequired: req.ApprovalRequired,
		ScheduleAllowed:  req.ScheduleAllowed,
		InputSchema:      req.InputSchema,
		DefaultInputs:    req.DefaultInputs,
		Steps:            req.Steps,
	}

	created, err := h.workflowService.Save(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Category != nil {
		existing.Category = *req.Category
	}

	if req.Version != nil {
		existing.Version = *req.Version
	}

	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}

	if req.ApprovalRequired != nil {
		existing.ApprovalRequired = *req.ApprovalRequired
	}

	if req.ScheduleAllowed != nil {
		existing.ScheduleAllowed = *req.ScheduleAllowed
	}

	if req.InputSchema != nil {
		existing.InputSchema = req.InputSchema
	}

	if req.DefaultInputs != nil {
		existing.DefaultInputs = req.DefaultInputs
	}

	if req.Steps != nil {
		existing.Steps = req.Steps
	}

	updated, err := h.workflowService.Save(c.Context(), existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	tasks, err := h.taskService.ListDefinitions(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(tasks)
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	task, err := h.taskService.GetDefinition(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) SaveTask(c fiber.Ctx) error {
	var task models.TaskDefinition
	if err := c.Bind().JSON(&task); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.taskService.SaveDefinition(c.Context(), &task)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteTask(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	err := h.taskService.DeleteDefinition(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetTaskImplementations(c fiber.Ctx) error {
	taskID := c.Params("id")
	if taskID == "" {
		return badRequest(c, "Task ID is required")
	}

	implementations, err := h.taskService.ListImplementations(c.Context(), taskID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(implementations)
}

func (h *APIHandlers) SaveTaskImplementation(c fiber.Ctx) error {
	taskID := c.Params("id")
	if taskID == "" {
		return badRequest(c, "Task ID is required")
	}

	var impl models.TaskImplementation
	if err := c.Bind().JSON(&impl); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	impl.TaskID = taskID

	created, err := h.taskService.SaveImplementation(c.Context(), &impl)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteTaskImplementation(c fiber.Ctx) error {
	id := c.Params("implementationId")
	if id == "" {
		return badRequest(c, "Implementation ID is required")
	}

	err := h.taskService.DeleteImplementation(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetProviderDefinitions(c fiber.Ctx) error {
	definitions, err := h.providerService.ListDefinitions(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(definitions)
}

func (h *APIHandlers) GetProviderDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Provider definition ID is required")
	}

	definition, err := h.providerService.GetDefinition(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) SaveProviderDefinition(c fiber.Ctx) error {
	var definition models.ProviderDefinition
	if err := c.Bind().JSON(&definition); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.providerService.SaveDefinition(c.Context(), &definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteProviderDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Provider definition ID is required")
	}

	err := h.providerService.DeleteDefinition(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetProviderInstances(c fiber.Ctx) error {
	instances, err := h.providerService.ListInstances(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(instances)
}

func (h *APIHandlers) GetProviderInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Provider instance ID is required")
	}

	instance, err := h.providerService.GetInstance(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) SaveProviderInstance(c fiber.Ctx) error {
	var instance models.ProviderInstance
	if err := c.Bind().JSON(&instance); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.providerService.SaveInstance(c.Context(), &instance)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteProviderInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Provider instance ID is required")
	}

	err := h.providerService.DeleteInstance(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateExecution(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req CreateExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution := &models.Execution{
		WorkflowID:   workflowID,
		Operation:    models.Operation(req.Operation),
		Inputs:       req.Inputs,
		Targets:      req.Targets,
		RequestedBy:  req.RequestedBy,
		ScheduledFor: req.ScheduledFor,
		Recurrence:   req.Recurrence,
	}

	created, err := h.executionService.Create(c.Context(), execution)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	executions, err := h.executionService.List(c.Context(), c.Query("workflow_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	steps, err := h.executionService.Steps(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(steps)
}

func (h *APIHandlers) ApproveExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ApproveExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.executionService.Approve(c.Context(), id, req.ApprovedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	err := h.executionService.Cancel(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RequestExecutionOperation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req RequestOperationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.executionService.RequestOperation(c.Context(), id, models.Operation(req.Operation))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
