package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/registry"
	"github.com/terrawatch/terrawatch/pkg/services"
)

type APIHandlers struct {
	workflows *services.WorkflowService
	runs      *services.RunService
	store     persistence.Persistence
	registry  *registry.Registry
	validator *validator.Validate
}

func NewAPIHandlers(
	workflows *services.WorkflowService,
	runs *services.RunService,
	store persistence.Persistence,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflows: workflows,
		runs:      runs,
		store:     store,
		registry:  reg,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflows.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Workflow endpoints.

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	opts, err := parseListWorkflowsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	workflows, err := h.workflows.List(c.Context(), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func parseListWorkflowsOptions(c fiber.Ctx) (*persistence.ListWorkflowsOptions, error) {
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

	opts.Owner = c.Query("owner")

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		opts.Status = &status
	}

	return opts, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflows.FetchByID(c.Context(), c.Params("id"))
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

	created, err := h.workflows.Create(c.Context(), req.ToModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflows.Update(c.Context(), c.Params("id"), req.ToModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflows.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflows.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflows.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// Run endpoints.

func (h *APIHandlers) TriggerRun(c fiber.Ctx) error {
	var req TriggerRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	run, err := h.runs.Trigger(c.Context(), c.Params("id"), req.Input, models.TriggerSourceManual, nil)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	opts := persistence.ListRunsOptions{WorkflowID: c.Query("workflow_id")}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.RunStatus(statusStr)
		opts.Status = &status
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset parameter")
		}

		opts.Offset = offset
	}

	runs, err := h.store.RunRepository().List(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs, "count": len(runs)})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.store.RunRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetRunTasks(c fiber.Ctx) error {
	runID := c.Params("id")

	if _, err := h.store.RunRepository().GetByID(c.Context(), runID); err != nil {
		return handleServiceError(c, err)
	}

	taskRuns, err := h.store.TaskRunRepository().ListByRun(c.Context(), runID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"task_runs": taskRuns, "count": len(taskRuns)})
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	if err := h.runs.Cancel(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) RetryRun(c fiber.Ctx) error {
	run, err := h.runs.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

// Schedule endpoints.

func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var req CreateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.workflows.FetchByID(c.Context(), req.WorkflowID); err != nil {
		return handleServiceError(c, err)
	}

	schedule := req.ToModel()
	schedule.ID = uuid.NewString()

	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if err := schedule.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := schedule.Recalculate(now); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.ScheduleRepository().Save(c.Context(), schedule); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (h *APIHandlers) GetSchedules(c fiber.Ctx) error {
	schedules, err := h.store.ScheduleRepository().List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"schedules": schedules, "count": len(schedules)})
}

func (h *APIHandlers) GetSchedule(c fiber.Ctx) error {
	schedule, err := h.store.ScheduleRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(schedule)
}

func (h *APIHandlers) DeleteSchedule(c fiber.Ctx) error {
	if err := h.store.ScheduleRepository().Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) setScheduleEnabled(c fiber.Ctx, enabled bool) error {
	schedule, err := h.store.ScheduleRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	now := time.Now().UTC()
	schedule.Enabled = enabled

	// Re-enabling computes the next run from now, not from where the
	// schedule stopped.
	if enabled {
		if err := schedule.Recalculate(now); err != nil {
			return badRequest(c, err.Error())
		}
	} else {
		schedule.UpdatedAt = now
	}

	if err := h.store.ScheduleRepository().Save(c.Context(), schedule); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(schedule)
}

func (h *APIHandlers) EnableSchedule(c fiber.Ctx) error {
	return h.setScheduleEnabled(c, true)
}

func (h *APIHandlers) DisableSchedule(c fiber.Ctx) error {
	return h.setScheduleEnabled(c, false)
}

// RunScheduleNow fires the schedule immediately without touching its timing.
func (h *APIHandlers) RunScheduleNow(c fiber.Ctx) error {
	schedule, err := h.store.ScheduleRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	run, err := h.runs.Trigger(c.Context(), schedule.WorkflowID, schedule.Input, models.TriggerSourceManual, map[string]any{
		"schedule_id": schedule.ID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

// Automation rule endpoints.

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.workflows.FetchByID(c.Context(), req.WorkflowID); err != nil {
		return handleServiceError(c, err)
	}

	rule := req.ToModel()
	rule.ID = uuid.NewString()

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := h.store.RuleRepository().Save(c.Context(), rule); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	rules, err := h.store.RuleRepository().List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"rules": rules, "count": len(rules)})
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.store.RuleRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	if err := h.store.RuleRepository().Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) setRuleEnabled(c fiber.Ctx, enabled bool) error {
	rule, err := h.store.RuleRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	rule.Enabled = enabled
	rule.UpdatedAt = time.Now().UTC()

	if err := h.store.RuleRepository().Save(c.Context(), rule); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) EnableRule(c fiber.Ctx) error {
	return h.setRuleEnabled(c, true)
}

func (h *APIHandlers) DisableRule(c fiber.Ctx) error {
	return h.setRuleEnabled(c, false)
}
