package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/events"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/persistence/file"
)

type capturingPublisher struct {
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func newService(t *testing.T) (*RunService, persistence.Persistence, *capturingPublisher) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	publisher := &capturingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRunService(store, publisher, logger), store, publisher
}

func saveActiveWorkflow(t *testing.T, store persistence.Persistence) {
	t.Helper()
	require.NoError(t, store.WorkflowRepository().Save(context.Background(), &models.Workflow{
		ID:        "wf-1",
		Name:      "coastline-report",
		Status:    models.WorkflowStatusActive,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestTriggerCreatesPendingRunAndPublishes(t *testing.T) {
	service, store, publisher := newService(t)
	saveActiveWorkflow(t, store)

	run, err := service.Trigger(context.Background(), "wf-1", map[string]any{"region": "delta"}, models.TriggerSourceManual, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPending, run.Status)
	assert.Equal(t, models.TriggerSourceManual, run.TriggerSource)

	stored, err := store.RunRepository().GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"region": "delta"}, stored.Input)

	require.Len(t, publisher.published, 1)
	requested, ok := publisher.published[0].(events.RunRequested)
	require.True(t, ok)
	assert.Equal(t, run.ID, requested.RunID)
}

func TestTriggerRejectsInactiveWorkflow(t *testing.T) {
	service, store, _ := newService(t)

	require.NoError(t, store.WorkflowRepository().Save(context.Background(), &models.Workflow{
		ID:     "wf-1",
		Name:   "draft-flow",
		Status: models.WorkflowStatusDraft,
	}))

	_, err := service.Trigger(context.Background(), "wf-1", nil, models.TriggerSourceManual, nil)
	assert.ErrorIs(t, err, ErrWorkflowNotExecutable)
}

func TestCancelRequiresCancellableRun(t *testing.T) {
	service, store, publisher := newService(t)

	require.NoError(t, store.RunRepository().Save(context.Background(), &models.Run{
		ID: "run-done", WorkflowID: "wf-1", Status: models.RunStatusSuccess,
	}))
	require.NoError(t, store.RunRepository().Save(context.Background(), &models.Run{
		ID: "run-live", WorkflowID: "wf-1", Status: models.RunStatusRunning,
	}))

	assert.ErrorIs(t, service.Cancel(context.Background(), "run-done"), ErrRunNotCancellable)

	require.NoError(t, service.Cancel(context.Background(), "run-live"))
	require.Len(t, publisher.published, 1)
	assert.Equal(t, events.RunCancelRequestedEvent, publisher.published[0].GetType())

	// A running run is terminated by the worker, not here.
	live, err := store.RunRepository().GetByID(context.Background(), "run-live")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, live.Status)
}

func TestCancelPendingRunFlipsStatusImmediately(t *testing.T) {
	service, store, publisher := newService(t)
	saveActiveWorkflow(t, store)

	run, err := service.Trigger(context.Background(), "wf-1", nil, models.TriggerSourceManual, nil)
	require.NoError(t, err)

	require.NoError(t, service.Cancel(context.Background(), run.ID))

	stored, err := store.RunRepository().GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.NotEmpty(t, stored.ErrorMessage)

	require.Len(t, publisher.published, 2)
	assert.Equal(t, events.RunCancelRequestedEvent, publisher.published[1].GetType())

	assert.ErrorIs(t, service.Cancel(context.Background(), run.ID), ErrRunNotCancellable)
}

func TestRetryCreatesLinkedRun(t *testing.T) {
	service, store, _ := newService(t)
	saveActiveWorkflow(t, store)

	require.NoError(t, store.RunRepository().Save(context.Background(), &models.Run{
		ID:         "run-failed",
		WorkflowID: "wf-1",
		Status:     models.RunStatusFailed,
		Input:      map[string]any{"region": "delta"},
	}))

	retry, err := service.Retry(context.Background(), "run-failed")
	require.NoError(t, err)

	assert.NotEqual(t, "run-failed", retry.ID)
	assert.Equal(t, models.TriggerSourceRetry, retry.TriggerSource)
	assert.Equal(t, "run-failed", retry.TriggerData[models.TriggerDataOriginalRunID])
	assert.Equal(t, map[string]any{"region": "delta"}, retry.Input)
}

func TestRetryRejectsNonFailedRun(t *testing.T) {
	service, store, _ := newService(t)
	saveActiveWorkflow(t, store)

	require.NoError(t, store.RunRepository().Save(context.Background(), &models.Run{
		ID: "run-ok", WorkflowID: "wf-1", Status: models.RunStatusSuccess,
	}))

	_, err := service.Retry(context.Background(), "run-ok")
	assert.ErrorIs(t, err, ErrRunNotRetryable)
}
