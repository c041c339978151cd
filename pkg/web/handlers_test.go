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

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/handlers/apicall"
	"github.com/terrawatch/terrawatch/pkg/handlers/script"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/persistence/file"
	"github.com/terrawatch/terrawatch/pkg/registry"
	"github.com/terrawatch/terrawatch/pkg/services"
	"github.com/terrawatch/terrawatch/pkg/web"
)

type nullPublisher struct{}

func (nullPublisher) Publish(context.Context, string, eventbus.Event) error { return nil }

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Register(script.NewFactory())
	reg.Register(apicall.NewFactory())

	workflows := services.NewWorkflowService(store, reg, logger)
	runs := services.NewRunService(store, nullPublisher{}, logger)

	app := fiber.New()
	web.NewAPIHandlers(workflows, runs, store, reg).Register(app)

	return app, store
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(body, &out))

	return out
}

func TestCreateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name:        "coastline-report",
		Description: "Weekly coastline change report",
		Owner:       "geo-team",
		Tasks: []web.TaskRequest{
			{Name: "render", Type: "script", Configuration: map[string]any{"script": "ok"}, Enabled: true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	workflow := decode[models.Workflow](t, resp)
	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
	require.Len(t, workflow.Tasks, 1)
	assert.NotEmpty(t, workflow.Tasks[0].ID)
	assert.Equal(t, workflow.ID, workflow.Tasks[0].WorkflowID)
}

func TestCreateWorkflowRejectsShortName(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{Name: "ab"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateWorkflowRejectsUnknownTaskType(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name: "bad-flow",
		Tasks: []web.TaskRequest{
			{Name: "noop", Type: "teleport", Enabled: true},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActivateValidatesConfiguration(t *testing.T) {
	app, _ := setupTestApp(t)

	// The script type requires an expression; activation must reject the
	// empty configuration even though the draft was accepted.
	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name: "broken-flow",
		Tasks: []web.TaskRequest{
			{Name: "noop", Type: "script", Configuration: map[string]any{}, Enabled: true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	workflow := decode[models.Workflow](t, resp)

	resp = postJSON(t, app, "/workflows/"+workflow.ID+"/activate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActivateAndPauseLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name: "coastline-report",
		Tasks: []web.TaskRequest{
			{Name: "render", Type: "script", Configuration: map[string]any{"script": "ok"}, Enabled: true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	workflow := decode[models.Workflow](t, resp)

	resp = postJSON(t, app, "/workflows/"+workflow.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	activated := decode[models.Workflow](t, resp)
	assert.Equal(t, models.WorkflowStatusActive, activated.Status)

	resp = postJSON(t, app, "/workflows/"+workflow.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paused := decode[models.Workflow](t, resp)
	assert.Equal(t, models.WorkflowStatusPaused, paused.Status)

	// Pausing twice is a conflict.
	resp = postJSON(t, app, "/workflows/"+workflow.ID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTriggerRunRequiresActiveWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name: "coastline-report",
		Tasks: []web.TaskRequest{
			{Name: "render", Type: "script", Configuration: map[string]any{"script": "ok"}, Enabled: true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	workflow := decode[models.Workflow](t, resp)

	resp = postJSON(t, app, "/workflows/"+workflow.ID+"/runs", web.TriggerRunRequest{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, app, "/workflows/"+workflow.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, "/workflows/"+workflow.ID+"/runs", web.TriggerRunRequest{
		Input: map[string]any{"region": "delta"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	run := decode[models.Run](t, resp)
	assert.Equal(t, models.RunStatusPending, run.Status)
	assert.Equal(t, map[string]any{"region": "delta"}, run.Input)
}

func TestGetRunNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/missing", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelFinishedRunConflicts(t *testing.T) {
	app, store := setupTestApp(t)

	require.NoError(t, store.RunRepository().Save(context.Background(), &models.Run{
		ID: "run-done", WorkflowID: "wf-1", Status: models.RunStatusSuccess,
	}))

	resp := postJSON(t, app, "/runs/run-done/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScheduleLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{
		Name: "coastline-report",
		Tasks: []web.TaskRequest{
			{Name: "render", Type: "script", Configuration: map[string]any{"script": "ok"}, Enabled: true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	workflow := decode[models.Workflow](t, resp)

	resp = postJSON(t, app, "/schedules", web.CreateScheduleRequest{
		WorkflowID:      workflow.ID,
		Name:            "every-hour",
		Type:            "interval",
		IntervalMinutes: 60,
		Enabled:         true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	schedule := decode[models.Schedule](t, resp)
	assert.NotEmpty(t, schedule.ID)
	require.NotNil(t, schedule.NextRun)

	resp = postJSON(t, app, "/schedules/"+schedule.ID+"/disable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	disabled := decode[models.Schedule](t, resp)
	assert.False(t, disabled.Enabled)
}

func TestCreateScheduleRejectsBadCron(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{Name: "coastline-report"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	workflow := decode[models.Workflow](t, resp)

	resp = postJSON(t, app, "/schedules", web.CreateScheduleRequest{
		WorkflowID:     workflow.ID,
		Name:           "bad-cron",
		Type:           "cron",
		CronExpression: "not a cron",
		Enabled:        true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateScheduleRejectsUnknownWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/schedules", web.CreateScheduleRequest{
		WorkflowID:      "missing",
		Name:            "orphan",
		Type:            "interval",
		IntervalMinutes: 5,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRuleLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/workflows", web.CreateWorkflowRequest{Name: "alert-response"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	workflow := decode[models.Workflow](t, resp)

	resp = postJSON(t, app, "/rules", web.CreateRuleRequest{
		Name:            "on-alert",
		TriggerEvent:    "monitor_alert",
		WorkflowID:      workflow.ID,
		ThrottleMinutes: 30,
		Enabled:         true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rule := decode[models.AutomationRule](t, resp)
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, models.RuleStatusActive, rule.Status)

	resp = postJSON(t, app, "/rules/"+rule.ID+"/disable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	disabled := decode[models.AutomationRule](t, resp)
	assert.False(t, disabled.Enabled)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
