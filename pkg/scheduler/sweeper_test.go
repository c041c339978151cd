package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/persistence/file"
	"github.com/terrawatch/terrawatch/pkg/services"
)

type nullPublisher struct{}

func (nullPublisher) Publish(context.Context, string, eventbus.Event) error { return nil }

func newSweeper(t *testing.T) (*Sweeper, persistence.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	runs := services.NewRunService(store, nullPublisher{}, logger)

	return NewSweeper(store, runs, NewLocalLocker(), logger), store
}

func saveWorkflow(t *testing.T, store persistence.Persistence, status models.WorkflowStatus) {
	t.Helper()
	require.NoError(t, store.WorkflowRepository().Save(context.Background(), &models.Workflow{
		ID:     "wf-1",
		Name:   "daily-report",
		Status: status,
	}))
}

func TestSweepFiresDueInterval(t *testing.T) {
	sweeper, store := newSweeper(t)
	saveWorkflow(t, store, models.WorkflowStatusActive)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	require.NoError(t, store.ScheduleRepository().Save(context.Background(), &models.Schedule{
		ID:              "s-1",
		WorkflowID:      "wf-1",
		Name:            "every-30m",
		Type:            models.ScheduleTypeInterval,
		IntervalMinutes: 30,
		Input:           map[string]any{"region": "delta"},
		Enabled:         true,
		NextRun:         &past,
	}))

	sweeper.Sweep(context.Background(), now)

	schedule, err := store.ScheduleRepository().GetByID(context.Background(), "s-1")
	require.NoError(t, err)

	assert.Equal(t, 1, schedule.RunCount)
	require.NotNil(t, schedule.LastRun)
	require.NotNil(t, schedule.NextRun)
	assert.WithinDuration(t, now.Add(30*time.Minute), *schedule.NextRun, time.Second)
	assert.True(t, schedule.Enabled)

	runs, err := store.RunRepository().List(context.Background(), persistence.ListRunsOptions{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.TriggerSourceSchedule, runs[0].TriggerSource)
	assert.Equal(t, "s-1", runs[0].TriggerData[TriggerDataScheduleID])
	assert.Equal(t, map[string]any{"region": "delta"}, runs[0].Input)
}

func TestSweepDisablesOnceSchedules(t *testing.T) {
	sweeper, store := newSweeper(t)
	saveWorkflow(t, store, models.WorkflowStatusActive)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	require.NoError(t, store.ScheduleRepository().Save(context.Background(), &models.Schedule{
		ID:            "s-once",
		WorkflowID:    "wf-1",
		Name:          "one-shot",
		Type:          models.ScheduleTypeOnce,
		ScheduledTime: &past,
		Enabled:       true,
		NextRun:       &past,
	}))

	sweeper.Sweep(context.Background(), now)

	schedule, err := store.ScheduleRepository().GetByID(context.Background(), "s-once")
	require.NoError(t, err)
	assert.False(t, schedule.Enabled)
	assert.Equal(t, 1, schedule.RunCount)

	// A second sweep must not fire it again.
	sweeper.Sweep(context.Background(), now.Add(time.Minute))

	runs, err := store.RunRepository().List(context.Background(), persistence.ListRunsOptions{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSweepAppliesCronFallback(t *testing.T) {
	sweeper, store := newSweeper(t)
	saveWorkflow(t, store, models.WorkflowStatusActive)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	require.NoError(t, store.ScheduleRepository().Save(context.Background(), &models.Schedule{
		ID:             "s-cron",
		WorkflowID:     "wf-1",
		Name:           "broken-cron",
		Type:           models.ScheduleTypeCron,
		CronExpression: "not a cron",
		Enabled:        true,
		NextRun:        &past,
	}))

	sweeper.Sweep(context.Background(), now)

	schedule, err := store.ScheduleRepository().GetByID(context.Background(), "s-cron")
	require.NoError(t, err)
	require.NotNil(t, schedule.NextRun)
	assert.WithinDuration(t, now.Add(time.Hour), *schedule.NextRun, time.Second)
}

func TestSweepAdvancesScheduleForPausedWorkflow(t *testing.T) {
	sweeper, store := newSweeper(t)
	saveWorkflow(t, store, models.WorkflowStatusPaused)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	require.NoError(t, store.ScheduleRepository().Save(context.Background(), &models.Schedule{
		ID:              "s-1",
		WorkflowID:      "wf-1",
		Name:            "every-30m",
		Type:            models.ScheduleTypeInterval,
		IntervalMinutes: 30,
		Enabled:         true,
		NextRun:         &past,
	}))

	sweeper.Sweep(context.Background(), now)

	// No run is created, but the schedule advances instead of staying due
	// forever.
	runs, err := store.RunRepository().List(context.Background(), persistence.ListRunsOptions{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Empty(t, runs)

	schedule, err := store.ScheduleRepository().GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	require.NotNil(t, schedule.NextRun)
	assert.True(t, schedule.NextRun.After(now))
}

func TestSweepSkipsLockedSchedules(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	runs := services.NewRunService(store, nullPublisher{}, logger)
	locker := NewLocalLocker()
	sweeper := NewSweeper(store, runs, locker, logger)

	saveWorkflow(t, store, models.WorkflowStatusActive)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	require.NoError(t, store.ScheduleRepository().Save(context.Background(), &models.Schedule{
		ID:              "s-1",
		WorkflowID:      "wf-1",
		Name:            "every-30m",
		Type:            models.ScheduleTypeInterval,
		IntervalMinutes: 30,
		Enabled:         true,
		NextRun:         &past,
	}))

	held, err := locker.Acquire(context.Background(), "s-1", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	sweeper.Sweep(context.Background(), now)

	listed, err := store.RunRepository().List(context.Background(), persistence.ListRunsOptions{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCleanupDropsOldTerminalRuns(t *testing.T) {
	sweeper, store := newSweeper(t)

	now := time.Now().UTC()

	require.NoError(t, store.RunRepository().Save(context.Background(), &models.Run{
		ID: "run-old", WorkflowID: "wf-1", Status: models.RunStatusSuccess,
		CreatedAt: now.Add(-40 * 24 * time.Hour),
	}))
	require.NoError(t, store.RunRepository().Save(context.Background(), &models.Run{
		ID: "run-new", WorkflowID: "wf-1", Status: models.RunStatusSuccess,
		CreatedAt: now.Add(-time.Hour),
	}))

	sweeper.Cleanup(context.Background(), now)

	_, err := store.RunRepository().GetByID(context.Background(), "run-old")
	assert.ErrorIs(t, err, persistence.ErrRunNotFound)

	_, err = store.RunRepository().GetByID(context.Background(), "run-new")
	assert.NoError(t, err)
}
