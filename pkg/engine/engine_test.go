package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/events"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/persistence/file"
	"github.com/terrawatch/terrawatch/pkg/protocol"
	"github.com/terrawatch/terrawatch/pkg/registry"
)

type stubHandler struct {
	fn func(ctx context.Context, runCtx *models.RunContext) (models.TaskResult, error)
}

func (h stubHandler) Execute(ctx context.Context, runCtx *models.RunContext, _ *slog.Logger) (models.TaskResult, error) {
	return h.fn(ctx, runCtx)
}

type stubFactory struct {
	taskType models.TaskType
	fn       func(ctx context.Context, runCtx *models.RunContext) (models.TaskResult, error)
}

func (f stubFactory) Type() models.TaskType { return f.taskType }

func (f stubFactory) Create(_ map[string]any) (protocol.TaskHandler, error) {
	return stubHandler{fn: f.fn}, nil
}

func (f stubFactory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]events.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.GetType())
	}

	return types
}

type testEngine struct {
	orchestrator *Orchestrator
	store        persistence.Persistence
	registry     *registry.Registry
	publisher    *recordingPublisher
	cancels      *CancelRegistry
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(logger)
	publisher := &recordingPublisher{}
	cancels := NewCancelRegistry()

	return &testEngine{
		orchestrator: NewOrchestrator(store, NewDispatcher(reg, logger), publisher, cancels, logger, "worker-test"),
		store:        store,
		registry:     reg,
		publisher:    publisher,
		cancels:      cancels,
	}
}

func (e *testEngine) register(taskType models.TaskType, fn func(ctx context.Context, runCtx *models.RunContext) (models.TaskResult, error)) {
	e.registry.Register(stubFactory{taskType: taskType, fn: fn})
}

func (e *testEngine) saveWorkflow(t *testing.T, workflow *models.Workflow) {
	t.Helper()
	require.NoError(t, e.store.WorkflowRepository().Save(context.Background(), workflow))
}

func (e *testEngine) savePendingRun(t *testing.T, runID, workflowID string, input map[string]any) {
	t.Helper()
	require.NoError(t, e.store.RunRepository().Save(context.Background(), &models.Run{
		ID:            runID,
		WorkflowID:    workflowID,
		Status:        models.RunStatusPending,
		Input:         input,
		TriggerSource: models.TriggerSourceManual,
		CreatedAt:     time.Now().UTC(),
	}))
}

func task(id, name string, taskType models.TaskType, order int, deps []string, mutate ...func(*models.Task)) *models.Task {
	t := &models.Task{
		ID:            id,
		WorkflowID:    "wf-1",
		Name:          name,
		Type:          taskType,
		Configuration: map[string]any{},
		Order:         order,
		DependsOn:     deps,
		Enabled:       true,
	}

	for _, m := range mutate {
		m(t)
	}

	return t
}

func activeWorkflow(tasks ...*models.Task) *models.Workflow {
	return &models.Workflow{
		ID:        "wf-1",
		Name:      "change-report",
		Status:    models.WorkflowStatusActive,
		Tasks:     tasks,
		CreatedAt: time.Now().UTC(),
	}
}

func successFn(output map[string]any) func(context.Context, *models.RunContext) (models.TaskResult, error) {
	return func(context.Context, *models.RunContext) (models.TaskResult, error) {
		return models.SuccessResult(output, ""), nil
	}
}

func TestOrchestratorRunsChainAndSharesContext(t *testing.T) {
	e := newTestEngine(t)

	var seenByLast map[string]any

	e.register(models.TaskTypeDataSync, successFn(map[string]any{"records": float64(10)}))
	e.register(models.TaskTypeScript, func(_ context.Context, runCtx *models.RunContext) (models.TaskResult, error) {
		seenByLast, _ = runCtx.Output("sync")

		return models.SuccessResult(map[string]any{"done": true}, ""), nil
	})

	e.saveWorkflow(t, activeWorkflow(
		task("t-2", "summarize", models.TaskTypeScript, 2, []string{"t-1"}),
		task("t-1", "sync", models.TaskTypeDataSync, 1, nil),
	))
	e.savePendingRun(t, "run-1", "wf-1", map[string]any{"region": "delta"})

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, run.TasksTotal)
	assert.Equal(t, 2, run.TasksCompleted)
	assert.Equal(t, 0, run.TasksFailed)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, map[string]any{"records": float64(10)}, seenByLast)

	workflow, err := e.store.WorkflowRepository().GetByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, workflow.ExecutionCount)
	assert.Equal(t, 1, workflow.SuccessCount)

	assert.Equal(t, []events.EventType{
		events.RunStartedEvent,
		events.TaskFinishedEvent,
		events.TaskFinishedEvent,
		events.RunFinishedEvent,
	}, e.publisher.types())
}

func TestOrchestratorHaltsOnFailure(t *testing.T) {
	e := newTestEngine(t)

	cRan := false

	e.register(models.TaskTypeDataSync, successFn(map[string]any{}))
	e.register(models.TaskTypeMonitorCheck, func(context.Context, *models.RunContext) (models.TaskResult, error) {
		return models.FailedResult("monitor unreachable", ""), nil
	})
	e.register(models.TaskTypeNotification, func(context.Context, *models.RunContext) (models.TaskResult, error) {
		cRan = true

		return models.SuccessResult(nil, ""), nil
	})

	e.saveWorkflow(t, activeWorkflow(
		task("t-a", "a", models.TaskTypeDataSync, 1, nil),
		task("t-b", "b", models.TaskTypeMonitorCheck, 2, []string{"t-a"}),
		task("t-c", "c", models.TaskTypeNotification, 3, []string{"t-b"}),
	))
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)

	assert.False(t, cRan)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 1, run.TasksCompleted)
	assert.Equal(t, 1, run.TasksFailed)
	assert.Contains(t, run.ErrorMessage, "task b failed")

	taskRuns, err := e.store.TaskRunRepository().ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, taskRuns, 3)

	byTask := map[string]models.TaskRunStatus{}
	for _, tr := range taskRuns {
		byTask[tr.TaskName] = tr.Status
	}

	assert.Equal(t, models.TaskRunStatusSuccess, byTask["a"])
	assert.Equal(t, models.TaskRunStatusFailed, byTask["b"])
	assert.Equal(t, models.TaskRunStatusSkipped, byTask["c"])

	workflow, err := e.store.WorkflowRepository().GetByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, workflow.FailureCount)
}

func TestOrchestratorContinueOnFailureTaintsRun(t *testing.T) {
	e := newTestEngine(t)

	e.register(models.TaskTypeMonitorCheck, func(context.Context, *models.RunContext) (models.TaskResult, error) {
		return models.FailedResult("transient glitch", ""), nil
	})
	e.register(models.TaskTypeNotification, successFn(map[string]any{"sent": true}))

	e.saveWorkflow(t, activeWorkflow(
		task("t-b", "check", models.TaskTypeMonitorCheck, 1, nil, func(task *models.Task) {
			task.ContinueOnFailure = true
		}),
		task("t-c", "notify", models.TaskTypeNotification, 2, nil),
	))
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)

	// Later tasks still run, but any task failure taints the run.
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 1, run.TasksCompleted)
	assert.Equal(t, 1, run.TasksFailed)
}

func TestOrchestratorRetriesOnce(t *testing.T) {
	e := newTestEngine(t)

	attempts := 0

	e.register(models.TaskTypeAPICall, func(context.Context, *models.RunContext) (models.TaskResult, error) {
		attempts++
		if attempts == 1 {
			return models.FailedResult("upstream 502", ""), nil
		}

		return models.SuccessResult(map[string]any{}, ""), nil
	})

	e.saveWorkflow(t, activeWorkflow(
		task("t-1", "fetch", models.TaskTypeAPICall, 1, nil, func(task *models.Task) {
			task.RetryOnFailure = true
		}),
	))
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, attempts)

	taskRuns, err := e.store.TaskRunRepository().ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, taskRuns, 1)
	assert.Equal(t, 1, taskRuns[0].RetryCount)
}

func TestOrchestratorRejectsNonPendingRun(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.store.RunRepository().Save(context.Background(), &models.Run{
		ID:         "run-1",
		WorkflowID: "wf-1",
		Status:     models.RunStatusSuccess,
		CreatedAt:  time.Now().UTC(),
	}))

	err := e.orchestrator.Execute(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrRunNotRunnable)
}

func TestOrchestratorFailsRunForPausedWorkflow(t *testing.T) {
	e := newTestEngine(t)

	workflow := activeWorkflow(task("t-1", "a", models.TaskTypeScript, 1, nil))
	workflow.Status = models.WorkflowStatusPaused
	e.saveWorkflow(t, workflow)
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "not executable")
}

func TestOrchestratorFailsRunOnDependencyCycle(t *testing.T) {
	e := newTestEngine(t)

	e.register(models.TaskTypeScript, successFn(nil))

	e.saveWorkflow(t, activeWorkflow(
		task("t-1", "a", models.TaskTypeScript, 1, []string{"t-2"}),
		task("t-2", "b", models.TaskTypeScript, 2, []string{"t-1"}),
	))
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "cycle")
}

func TestOrchestratorSkipsAlreadyCancelledRun(t *testing.T) {
	e := newTestEngine(t)

	e.register(models.TaskTypeScript, successFn(nil))
	e.saveWorkflow(t, activeWorkflow(task("t-1", "a", models.TaskTypeScript, 1, nil)))

	require.NoError(t, e.store.RunRepository().Save(context.Background(), &models.Run{
		ID:         "run-1",
		WorkflowID: "wf-1",
		Status:     models.RunStatusCancelled,
		CreatedAt:  time.Now().UTC(),
	}))

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, run.Status)

	taskRuns, err := e.store.TaskRunRepository().ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Empty(t, taskRuns)
	assert.Empty(t, e.publisher.types())
}

func TestOrchestratorCountsUnstartableRunAgainstWorkflow(t *testing.T) {
	e := newTestEngine(t)

	e.saveWorkflow(t, activeWorkflow(
		task("t-1", "a", models.TaskTypeScript, 1, []string{"t-2"}),
		task("t-2", "b", models.TaskTypeScript, 2, []string{"t-1"}),
	))
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	workflow, err := e.store.WorkflowRepository().GetByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, workflow.ExecutionCount)
	assert.Equal(t, 1, workflow.FailureCount)
	assert.NotNil(t, workflow.LastExecution)
}

func TestOrchestratorCounterUpdateKeepsConcurrentEdits(t *testing.T) {
	e := newTestEngine(t)

	e.register(models.TaskTypeScript, func(ctx context.Context, _ *models.RunContext) (models.TaskResult, error) {
		// An operator pauses the workflow while the run is executing.
		workflow, err := e.store.WorkflowRepository().GetByID(ctx, "wf-1")
		if err != nil {
			return models.TaskResult{}, err
		}

		workflow.Status = models.WorkflowStatusPaused
		if err := e.store.WorkflowRepository().Save(ctx, workflow); err != nil {
			return models.TaskResult{}, err
		}

		return models.SuccessResult(nil, ""), nil
	})

	e.saveWorkflow(t, activeWorkflow(task("t-1", "slow", models.TaskTypeScript, 1, nil)))
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	workflow, err := e.store.WorkflowRepository().GetByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, workflow.Status)
	assert.Equal(t, 1, workflow.ExecutionCount)
	assert.Equal(t, 1, workflow.SuccessCount)
}

func TestOrchestratorCancellationMarksRunCancelled(t *testing.T) {
	e := newTestEngine(t)

	e.register(models.TaskTypeScript, func(ctx context.Context, _ *models.RunContext) (models.TaskResult, error) {
		e.cancels.Cancel("run-1")
		<-ctx.Done()

		return models.TaskResult{}, ctx.Err()
	})
	e.register(models.TaskTypeNotification, successFn(nil))

	e.saveWorkflow(t, activeWorkflow(
		task("t-1", "long", models.TaskTypeScript, 1, nil),
		task("t-2", "notify", models.TaskTypeNotification, 2, []string{"t-1"}),
	))
	e.savePendingRun(t, "run-1", "wf-1", nil)

	require.NoError(t, e.orchestrator.Execute(context.Background(), "run-1"))

	run, err := e.store.RunRepository().GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, run.Status)

	taskRuns, err := e.store.TaskRunRepository().ListByRun(context.Background(), "run-1")
	require.NoError(t, err)

	for _, tr := range taskRuns {
		if tr.TaskName == "notify" {
			assert.Equal(t, models.TaskRunStatusSkipped, tr.Status)
		}
	}
}

func TestDispatcherContainsPanics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewRegistry(logger)
	reg.Register(stubFactory{taskType: models.TaskTypeScript, fn: func(context.Context, *models.RunContext) (models.TaskResult, error) {
		panic("boom")
	}})

	dispatcher := NewDispatcher(reg, logger)

	result, retries := dispatcher.Run(
		context.Background(),
		task("t-1", "explode", models.TaskTypeScript, 1, nil),
		models.NewRunContext("run-1", "wf-1", nil),
	)

	assert.Equal(t, models.ResultStatusFailed, result.Status)
	assert.Contains(t, result.Error, "panicked")
	assert.Equal(t, 0, retries)
}

func TestDispatcherFoldsHandlerErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewRegistry(logger)
	reg.Register(stubFactory{taskType: models.TaskTypeScript, fn: func(context.Context, *models.RunContext) (models.TaskResult, error) {
		return models.TaskResult{}, errors.New("template exploded")
	}})

	dispatcher := NewDispatcher(reg, logger)

	result, _ := dispatcher.Run(
		context.Background(),
		task("t-1", "render", models.TaskTypeScript, 1, nil),
		models.NewRunContext("run-1", "wf-1", nil),
	)

	assert.Equal(t, models.ResultStatusFailed, result.Status)
	assert.Contains(t, result.Error, "template exploded")
}

func TestDispatcherRejectsUnregisteredType(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := NewDispatcher(registry.NewRegistry(logger), logger)

	result, _ := dispatcher.Run(
		context.Background(),
		task("t-1", "sync", models.TaskTypeDataSync, 1, nil),
		models.NewRunContext("run-1", "wf-1", nil),
	)

	assert.Equal(t, models.ResultStatusFailed, result.Status)
	assert.Contains(t, result.Error, "not registered")
}

func TestCancelRegistry(t *testing.T) {
	cancels := NewCancelRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	cancels.Register("run-1", cancel)

	assert.False(t, cancels.Cancel("unknown"))
	assert.True(t, cancels.Cancel("run-1"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	cancels.Remove("run-1")
	assert.False(t, cancels.Cancel("run-1"))
}
