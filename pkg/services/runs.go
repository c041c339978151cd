// Package services holds the application services shared by the API, the
// scheduler and the rule engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/events"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

var (
	// ErrWorkflowNotExecutable is returned when triggering a workflow that
	// is not active or has been deleted.
	ErrWorkflowNotExecutable = errors.New("workflow is not executable")

	// ErrRunNotCancellable is returned when cancelling a run that already
	// reached a terminal status.
	ErrRunNotCancellable = errors.New("run is not cancellable")

	// ErrRunNotRetryable is returned when retrying a run that did not fail.
	ErrRunNotRetryable = errors.New("run is not retryable")
)

// RunService creates, cancels and retries runs. Execution itself happens on
// a worker; this service only writes the pending record and publishes the
// request.
type RunService struct {
	store     persistence.Persistence
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewRunService(store persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *RunService {
	return &RunService{
		store:     store,
		publisher: publisher,
		logger:    logger.With("module", "run_service"),
	}
}

// Trigger creates a pending run for the workflow and asks a worker to pick
// it up.
func (s *RunService) Trigger(ctx context.Context, workflowID string, input map[string]any, source string, triggerData map[string]any) (*models.Run, error) {
	workflow, err := s.store.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.CanExecute() {
		return nil, fmt.Errorf("%w: workflow %s is %s", ErrWorkflowNotExecutable, workflow.ID, workflow.Status)
	}

	now := time.Now().UTC()

	run := &models.Run{
		ID:            uuid.NewString(),
		WorkflowID:    workflow.ID,
		Status:        models.RunStatusPending,
		Input:         input,
		TriggerSource: source,
		TriggerData:   triggerData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.RunRepository().Save(ctx, run); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Run triggered",
		"run_id", run.ID, "workflow_id", workflow.ID, "trigger_source", source)

	if err := s.publisher.Publish(ctx, workflow.ID, events.RunRequested{
		BaseEvent: events.BaseEvent{
			ID:         uuid.NewString(),
			Type:       events.RunRequestedEvent,
			Timestamp:  now,
			WorkflowID: workflow.ID,
		},
		RunID:         run.ID,
		TriggerSource: source,
		TriggerData:   triggerData,
	}); err != nil {
		return nil, fmt.Errorf("failed to publish run request: %w", err)
	}

	return run, nil
}

// Cancel cancels a run. A pending run has no worker holding it, so its
// status flips to cancelled right here; a running run flips when the worker
// acts on the published request. The request is published in both cases to
// cover a worker that picked the run up concurrently.
func (s *RunService) Cancel(ctx context.Context, runID string) error {
	run, err := s.store.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return err
	}

	if !run.CanCancel() {
		return fmt.Errorf("%w: run %s is %s", ErrRunNotCancellable, run.ID, run.Status)
	}

	now := time.Now().UTC()
	run.UpdatedAt = now

	if run.Status == models.RunStatusPending {
		run.Status = models.RunStatusCancelled
		run.ErrorMessage = "run cancelled before execution"
		run.CompletedAt = &now
	}

	if err := s.store.RunRepository().Save(ctx, run); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Run cancellation requested",
		"run_id", run.ID, "job_id", run.JobID, "status", run.Status)

	return s.publisher.Publish(ctx, run.WorkflowID, events.RunCancelRequested{
		BaseEvent: events.BaseEvent{
			ID:         uuid.NewString(),
			Type:       events.RunCancelRequestedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: run.WorkflowID,
		},
		RunID: run.ID,
		JobID: run.JobID,
	})
}

// Retry creates a fresh run from a failed one. The original run is left
// untouched; the new run records where it came from.
func (s *RunService) Retry(ctx context.Context, runID string) (*models.Run, error) {
	original, err := s.store.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if !original.CanRetry() {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunNotRetryable, original.ID, original.Status)
	}

	return s.Trigger(ctx, original.WorkflowID, original.Input, models.TriggerSourceRetry, map[string]any{
		models.TriggerDataOriginalRunID: original.ID,
	})
}
