// Package web provides HTTP handlers and REST API endpoints for workflow
// management, execution and review.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/routinehq/routine/pkg/checkpoint"
	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// HeaderUserID carries the acting user's identity on API requests.
const HeaderUserID = "X-User-ID"

type APIHandlers struct {
	engine    *engine.Engine
	validator *validator.Validate
}

func NewAPIHandlers(
	engine *engine.Engine,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		validator: validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	opts, err := h.parseListWorkflowsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	opts.UserID = userID

	result, err := h.engine.ListWorkflows(c.Context(), *opts)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    opts.SortBy,
			"sort_order": opts.SortOrder,
		},
	})
}

// parseListWorkflowsOptions parses and validates query parameters for listing
// workflows.
func (h *APIHandlers) parseListWorkflowsOptions(c fiber.Ctx) (*persistence.ListWorkflowsOptions, error) {
	opts := &persistence.ListWorkflowsOptions{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		opts.Status = &status
	}

	opts.SortBy = c.Query("sort_by")
	opts.SortOrder = c.Query("sort_order")

	return opts, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.engine.GetWorkflow(c.Context(), id)
	if err != nil {
		if engine.IsNotFoundError(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeErr := h.engine.HealthCheck(c.Context())

	status := "healthy"
	message := "Routine API is healthy"
	httpStatus := http.StatusOK
	storeCheck := "ok"

	if storeErr != nil {
		status = "unhealthy"
		message = "Routine API is unhealthy"
		httpStatus = http.StatusInternalServerError
		storeCheck = storeErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req SaveWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Trigger:     req.Trigger,
		Steps:       req.Steps,
		PlanGraph:   req.PlanGraph,
	}

	created, err := h.engine.SaveWorkflow(c.Context(), userID, workflow)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req SaveWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Trigger:     req.Trigger,
		Steps:       req.Steps,
		PlanGraph:   req.PlanGraph,
	}

	updated, err := h.engine.SaveWorkflow(c.Context(), userID, workflow)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) CompileWorkflow(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req CompileWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.engine.CreateFromPrompt(c.Context(), userID, req.Prompt)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req RunWorkflowRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	execution, err := h.engine.RunWorkflowByID(c.Context(), engine.RunParams{
		UserID:      userID,
		WorkflowID:  id,
		TriggerType: models.TriggerTypeManual,
		TriggerData: req.TriggerData,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) RunWorkflowBackground(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req RunWorkflowRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	err := h.engine.RequestRun(c.Context(), engine.RunParams{
		UserID:      userID,
		WorkflowID:  id,
		TriggerType: models.TriggerTypeManual,
		TriggerData: req.TriggerData,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":      "queued",
		"workflow_id": id,
	})
}

func (h *APIHandlers) RunWorkflowStep(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	stepID := c.Params("stepId")
	if stepID == "" {
		return badRequest(c, "Step ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	execution, err := h.engine.RunStepByID(c.Context(), userID, id, stepID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	workflow, err := h.engine.PauseWorkflow(c.Context(), userID, id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	workflow, err := h.engine.ResumeWorkflow(c.Context(), userID, id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	workflow, err := h.engine.CancelWorkflow(c.Context(), userID, id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ArchiveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	workflow, err := h.engine.ArchiveWorkflow(c.Context(), userID, id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetWorkflowHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		limit = parsed
	}

	entries, err := h.engine.ListChangeHistory(c.Context(), id, limit)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"entries": entries})
}

func (h *APIHandlers) DiffWorkflowHistory(c fiber.Ctx) error {
	left := c.Query("left")
	right := c.Query("right")

	if left == "" || right == "" {
		return badRequest(c, "Query parameters left and right are required")
	}

	diff, err := h.engine.DiffChangeEntries(c.Context(), left, right)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(diff)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	opts, err := h.parseListExecutionsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	opts.UserID = userID

	executions, err := h.engine.ListExecutions(c.Context(), *opts)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

// parseListExecutionsOptions parses and validates query parameters for
// listing executions.
func (h *APIHandlers) parseListExecutionsOptions(c fiber.Ctx) (*persistence.ListExecutionsOptions, error) {
	opts := &persistence.ListExecutionsOptions{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	opts.WorkflowID = c.Query("workflow_id")

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ExecutionStatus(statusStr)
		opts.Status = &status
	}

	return opts, nil
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.engine.GetExecution(c.Context(), id)
	if err != nil {
		if engine.IsNotFoundError(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetCheckpoints(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	requests, err := h.engine.ListPendingCheckpoints(c.Context(), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"checkpoints": requests})
}

func (h *APIHandlers) ResolveCheckpoint(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Checkpoint ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req ResolveCheckpointRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.engine.ResolveCheckpoint(c.Context(), userID, id, checkpoint.Resolution{
		Decision:        req.Decision,
		EditedAction:    req.EditedAction,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetApprovals(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	executions, err := h.engine.ListPendingApprovals(c.Context(), userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"approvals": executions})
}

func (h *APIHandlers) GetArtifacts(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	artifacts, err := h.engine.ListArtifacts(c.Context(), userID, c.Query("execution_id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"artifacts": artifacts})
}

func (h *APIHandlers) GetNotifications(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	unreadOnly := false

	if unreadStr := c.Query("unread"); unreadStr != "" {
		parsed, err := strconv.ParseBool(unreadStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		unreadOnly = parsed
	}

	notifications, err := h.engine.ListNotifications(c.Context(), userID, unreadOnly)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"notifications": notifications})
}

func (h *APIHandlers) MarkNotificationRead(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Notification ID is required")
	}

	notification, err := h.engine.MarkNotificationRead(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(notification)
}

func (h *APIHandlers) GetDeadLetters(c fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var status *models.DeadLetterStatus

	if statusStr := c.Query("status"); statusStr != "" {
		parsed := models.DeadLetterStatus(statusStr)
		status = &parsed
	}

	entries, err := h.engine.ListDeadLetters(c.Context(), userID, status)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"dead_letters": entries})
}

func (h *APIHandlers) ResolveDeadLetter(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Dead letter ID is required")
	}

	userID := c.Get(HeaderUserID)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	entry, err := h.engine.ResolveDeadLetter(c.Context(), userID, id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(entry)
}
