package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/terrawatch/terrawatch/pkg/dag"
	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/events"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// ErrRunNotRunnable is returned when a run cannot start because its workflow
// refuses execution or the run is not pending.
var ErrRunNotRunnable = errors.New("run is not in a runnable state")

// Orchestrator executes runs end to end: it resolves the task order, walks
// it sequentially, maintains run and task run records and finalizes the run.
type Orchestrator struct {
	persistence persistence.Persistence
	dispatcher  *Dispatcher
	publisher   eventbus.EventPublisher
	cancels     *CancelRegistry
	logger      *slog.Logger
	workerID    string
}

func NewOrchestrator(
	store persistence.Persistence,
	dispatcher *Dispatcher,
	publisher eventbus.EventPublisher,
	cancels *CancelRegistry,
	logger *slog.Logger,
	workerID string,
) *Orchestrator {
	return &Orchestrator{
		persistence: store,
		dispatcher:  dispatcher,
		publisher:   publisher,
		cancels:     cancels,
		logger:      logger.With("module", "orchestrator", "worker_id", workerID),
		workerID:    workerID,
	}
}

// Execute drives one run to a terminal status. The returned error covers
// infrastructure failures only; task failures end in a failed run, not an
// error.
func (o *Orchestrator) Execute(ctx context.Context, runID string) error {
	run, err := o.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	// A run cancelled before any worker picked it up is already terminal;
	// the request event is stale, not an error.
	if run.Status == models.RunStatusCancelled {
		o.logger.InfoContext(ctx, "Run already cancelled, not executing", "run_id", run.ID)

		return nil
	}

	if run.Status != models.RunStatusPending {
		return fmt.Errorf("%w: run %s is %s", ErrRunNotRunnable, run.ID, run.Status)
	}

	logger := o.logger.With("run_id", run.ID, "workflow_id", run.WorkflowID)

	workflow, err := o.persistence.WorkflowRepository().GetByID(ctx, run.WorkflowID)
	if err != nil {
		o.finalizeBroken(ctx, run, nil, fmt.Sprintf("workflow %s not found", run.WorkflowID))

		return nil
	}

	if !workflow.CanExecute() {
		o.finalizeBroken(ctx, run, workflow, fmt.Sprintf("workflow %s is not executable (status %s)", workflow.ID, workflow.Status))

		return nil
	}

	order, err := dag.Resolve(workflow.ActiveTasks())
	if err != nil {
		logger.ErrorContext(ctx, "Task graph resolution failed", "error", err)
		o.finalizeBroken(ctx, run, workflow, err.Error())

		return nil
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)

	if workflow.TimeoutMinutes > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(workflow.TimeoutMinutes)*time.Minute)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	o.cancels.Register(run.ID, cancel)
	defer o.cancels.Remove(run.ID)

	o.start(ctx, run, len(order))
	logger.InfoContext(ctx, "Run started", "tasks_total", len(order))

	o.publish(ctx, run.WorkflowID, events.RunStarted{
		BaseEvent: o.baseEvent(events.RunStartedEvent, run.WorkflowID),
		RunID:     run.ID,
	})

	o.executeTasks(runCtx, run, workflow, order, logger)
	o.finalize(ctx, run, workflow, runCtx.Err(), logger)

	return nil
}

// executeTasks walks the resolved order sequentially. A task failure without
// continue_on_failure halts the walk; the remaining tasks are materialized
// as skipped.
func (o *Orchestrator) executeTasks(
	runCtx context.Context,
	run *models.Run,
	workflow *models.Workflow,
	order []*models.Task,
	logger *slog.Logger,
) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(runCtx, "Run execution panicked", "panic", r, "stack", string(debug.Stack()))

			run.ErrorMessage = fmt.Sprintf("run execution panicked: %v", r)
			run.TasksFailed++
		}
	}()

	execution := models.NewRunContext(run.ID, run.WorkflowID, run.Input)

	for index, task := range order {
		if runCtx.Err() != nil {
			o.skipRemaining(runCtx, run, order[index:], "run stopped before this task started")

			return
		}

		result := o.runTask(runCtx, run, task, execution, logger)

		if result.Status == models.ResultStatusSuccess {
			run.TasksCompleted++

			if err := execution.SetOutput(task.Name, result.Output); err != nil {
				logger.ErrorContext(runCtx, "Failed to record task output", "task_name", task.Name, "error", err)
			}

			continue
		}

		run.TasksFailed++

		if run.ErrorMessage == "" {
			run.ErrorMessage = fmt.Sprintf("task %s failed: %s", task.Name, result.Error)
		}

		if !task.ContinueOnFailure {
			o.skipRemaining(runCtx, run, order[index+1:], fmt.Sprintf("upstream task %s failed", task.Name))

			return
		}
	}

	run.Output = map[string]any{"outputs": execution.Outputs}
}

// runTask materializes the TaskRun lifecycle around one dispatch.
func (o *Orchestrator) runTask(
	runCtx context.Context,
	run *models.Run,
	task *models.Task,
	execution *models.RunContext,
	logger *slog.Logger,
) models.TaskResult {
	// Record keeping must survive run cancellation.
	saveCtx := context.WithoutCancel(runCtx)
	started := time.Now().UTC()

	taskRun := &models.TaskRun{
		ID:        uuid.NewString(),
		RunID:     run.ID,
		TaskID:    task.ID,
		TaskName:  task.Name,
		Status:    models.TaskRunStatusRunning,
		StartedAt: &started,
		Input:     execution.Snapshot(),
	}

	if err := o.persistence.TaskRunRepository().Save(saveCtx, taskRun); err != nil {
		logger.ErrorContext(runCtx, "Failed to save task run", "task_id", task.ID, "error", err)
	}

	result, retries := o.dispatcher.Run(runCtx, task, execution)

	completed := time.Now().UTC()
	taskRun.CompletedAt = &completed
	taskRun.Output = result.Output
	taskRun.Logs = result.Logs
	taskRun.Error = result.Error
	taskRun.RetryCount = retries

	if result.Status == models.ResultStatusSuccess {
		taskRun.Status = models.TaskRunStatusSuccess
	} else {
		taskRun.Status = models.TaskRunStatusFailed
	}

	if err := o.persistence.TaskRunRepository().Save(saveCtx, taskRun); err != nil {
		logger.ErrorContext(runCtx, "Failed to update task run", "task_id", task.ID, "error", err)
	}

	logger.InfoContext(runCtx, "Task finished",
		"task_name", task.Name, "status", taskRun.Status, "retries", retries)

	o.publish(saveCtx, run.WorkflowID, events.TaskFinished{
		BaseEvent:  o.baseEvent(events.TaskFinishedEvent, run.WorkflowID),
		RunID:      run.ID,
		TaskID:     task.ID,
		TaskName:   task.Name,
		Status:     string(taskRun.Status),
		RetryCount: retries,
		Duration:   taskRun.Duration(),
	})

	return result
}

// skipRemaining materializes a skipped TaskRun for every task that never ran.
func (o *Orchestrator) skipRemaining(ctx context.Context, run *models.Run, remaining []*models.Task, reason string) {
	ctx = context.WithoutCancel(ctx)

	for _, task := range remaining {
		taskRun := &models.TaskRun{
			ID:       uuid.NewString(),
			RunID:    run.ID,
			TaskID:   task.ID,
			TaskName: task.Name,
			Status:   models.TaskRunStatusSkipped,
			Logs:     reason,
		}

		if err := o.persistence.TaskRunRepository().Save(ctx, taskRun); err != nil {
			o.logger.ErrorContext(ctx, "Failed to save skipped task run", "task_id", task.ID, "error", err)
		}
	}
}

func (o *Orchestrator) start(ctx context.Context, run *models.Run, tasksTotal int) {
	now := time.Now().UTC()
	run.Status = models.RunStatusRunning
	run.StartedAt = &now
	run.UpdatedAt = now
	run.TasksTotal = tasksTotal
	run.JobID = o.workerID + ":" + run.ID

	if err := o.persistence.RunRepository().Save(ctx, run); err != nil {
		o.logger.ErrorContext(ctx, "Failed to mark run running", "run_id", run.ID, "error", err)
	}
}

// finalize stamps the terminal status, folds the result into the workflow
// counters and publishes the finished event.
func (o *Orchestrator) finalize(ctx context.Context, run *models.Run, workflow *models.Workflow, ctxErr error, logger *slog.Logger) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.UpdatedAt = now

	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		run.Status = models.RunStatusTimeout
		if run.ErrorMessage == "" {
			run.ErrorMessage = fmt.Sprintf("run timed out after %d minutes", workflow.TimeoutMinutes)
		}
	case errors.Is(ctxErr, context.Canceled):
		run.Status = models.RunStatusCancelled
		if run.ErrorMessage == "" {
			run.ErrorMessage = "run cancelled"
		}
	case run.TasksFailed > 0:
		run.Status = models.RunStatusFailed
	default:
		run.Status = models.RunStatusSuccess
	}

	if err := o.persistence.RunRepository().Save(ctx, run); err != nil {
		logger.ErrorContext(ctx, "Failed to finalize run", "error", err)
	}

	// Counter-only update: the workflow row may have been edited while the
	// run was executing, so the copy loaded at run start must not be
	// written back.
	if err := o.persistence.WorkflowRepository().RecordRun(ctx, workflow.ID, run.Status == models.RunStatusSuccess, now); err != nil {
		logger.ErrorContext(ctx, "Failed to update workflow counters", "error", err)
	}

	logger.InfoContext(ctx, "Run finished",
		"status", run.Status,
		"tasks_completed", run.TasksCompleted,
		"tasks_failed", run.TasksFailed,
		"duration", run.Duration())

	o.publish(ctx, run.WorkflowID, events.RunFinished{
		BaseEvent: o.baseEvent(events.RunFinishedEvent, run.WorkflowID),
		RunID:     run.ID,
		Status:    string(run.Status),
		Output:    run.Output,
		Error:     run.ErrorMessage,
		Duration:  run.Duration(),
	})
}

// finalizeBroken fails a run that could not start at all. The failure still
// counts against the workflow when one exists.
func (o *Orchestrator) finalizeBroken(ctx context.Context, run *models.Run, workflow *models.Workflow, reason string) {
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = reason
	run.CompletedAt = &now
	run.UpdatedAt = now

	if err := o.persistence.RunRepository().Save(ctx, run); err != nil {
		o.logger.ErrorContext(ctx, "Failed to finalize broken run", "run_id", run.ID, "error", err)
	}

	if workflow != nil {
		if err := o.persistence.WorkflowRepository().RecordRun(ctx, workflow.ID, false, now); err != nil {
			o.logger.ErrorContext(ctx, "Failed to update workflow counters", "run_id", run.ID, "error", err)
		}
	}

	o.publish(ctx, run.WorkflowID, events.RunFinished{
		BaseEvent: o.baseEvent(events.RunFinishedEvent, run.WorkflowID),
		RunID:     run.ID,
		Status:    string(run.Status),
		Error:     run.ErrorMessage,
	})
}

func (o *Orchestrator) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		WorkerID:   o.workerID,
	}
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		o.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
