package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/terrawatch/terrawatch/pkg/dag"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/registry"
)

// ErrInvalidTransition is returned on a status change the workflow lifecycle
// does not allow, such as pausing a draft.
var ErrInvalidTransition = errors.New("invalid workflow status transition")

// WorkflowService owns the workflow lifecycle: definitions are edited as
// drafts and validated in full when activated.
type WorkflowService struct {
	store     persistence.Persistence
	registry  *registry.Registry
	validator *validator.Validate
	logger    *slog.Logger
}

func NewWorkflowService(store persistence.Persistence, reg *registry.Registry, logger *slog.Logger) *WorkflowService {
	return &WorkflowService{
		store:     store,
		registry:  reg,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("module", "workflow_service"),
	}
}

// Create stores a new workflow. Missing identifiers are generated; a missing
// status defaults to draft. Structural validation runs immediately, task
// configuration validation is deferred to activation.
func (s *WorkflowService) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	s.normalizeTasks(workflow)

	if err := s.validateStructure(workflow); err != nil {
		return nil, err
	}

	if err := s.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow created", "workflow_id", workflow.ID, "name", workflow.Name)

	return workflow, nil
}

// Update replaces the definition of an existing workflow. The stored
// lifecycle fields and counters are preserved.
func (s *WorkflowService) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := s.store.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.Status = existing.Status
	workflow.ExecutionCount = existing.ExecutionCount
	workflow.SuccessCount = existing.SuccessCount
	workflow.FailureCount = existing.FailureCount
	workflow.LastExecution = existing.LastExecution
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	s.normalizeTasks(workflow)

	if err := s.validateStructure(workflow); err != nil {
		return nil, err
	}

	// An active workflow must stay runnable after the edit.
	if workflow.Status == models.WorkflowStatusActive {
		if err := s.validateExecutable(workflow); err != nil {
			return nil, err
		}
	}

	if err := s.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (s *WorkflowService) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.store.WorkflowRepository().GetByID(ctx, id)
}

func (s *WorkflowService) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	return s.store.WorkflowRepository().List(ctx, opts)
}

func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	return s.store.WorkflowRepository().Delete(ctx, id)
}

// Activate validates the workflow in full, including per-task configuration
// schemas and dependency resolution, then marks it active.
func (s *WorkflowService) Activate(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := s.store.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status == models.WorkflowStatusArchived {
		return nil, fmt.Errorf("%w: cannot activate an archived workflow", ErrInvalidTransition)
	}

	if err := s.validateStructure(workflow); err != nil {
		return nil, err
	}

	if err := s.validateExecutable(workflow); err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatusActive
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow activated", "workflow_id", workflow.ID)

	return workflow, nil
}

// Pause takes an active workflow out of rotation without losing it.
func (s *WorkflowService) Pause(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := s.store.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: only active workflows can be paused, workflow is %s", ErrInvalidTransition, workflow.Status)
	}

	workflow.Status = models.WorkflowStatusPaused
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (s *WorkflowService) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.store.HealthCheck(ctx); err != nil {
		return err.Error(), false
	}

	return "repository reachable", true
}

// normalizeTasks fills in task identifiers and back references so callers
// can submit task lists without ids.
func (s *WorkflowService) normalizeTasks(workflow *models.Workflow) {
	for _, task := range workflow.Tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}

		task.WorkflowID = workflow.ID
	}
}

// validateStructure checks field constraints, task types and the workflow's
// structural invariants.
func (s *WorkflowService) validateStructure(workflow *models.Workflow) error {
	if err := s.validator.Struct(workflow); err != nil {
		return &models.ValidationError{Field: "workflow", Reason: err.Error()}
	}

	for _, task := range workflow.Tasks {
		if _, err := models.ParseTaskType(string(task.Type)); err != nil {
			return &models.ValidationError{Field: "tasks", Reason: err.Error()}
		}
	}

	return workflow.Validate()
}

// validateExecutable checks everything a run would need: resolvable
// dependencies among the enabled tasks and valid per-type configurations.
func (s *WorkflowService) validateExecutable(workflow *models.Workflow) error {
	if _, err := dag.Resolve(workflow.ActiveTasks()); err != nil {
		return &models.ValidationError{Field: "depends_on", Reason: err.Error()}
	}

	for _, task := range workflow.ActiveTasks() {
		if err := s.registry.ValidateConfiguration(task.Type, task.Configuration); err != nil {
			return &models.ValidationError{Field: "configuration", Reason: err.Error()}
		}
	}

	return nil
}
