package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/terrawatch/pkg/models"
)

type fakeClient struct {
	agentID string
	input   map[string]any
	output  map[string]any
	err     error
}

func (f *fakeClient) ExecuteAgent(_ context.Context, agentID string, input map[string]any) (map[string]any, error) {
	f.agentID = agentID
	f.input = input

	return f.output, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlerInvokesAgentWithRenderedInput(t *testing.T) {
	runCtx := models.NewRunContext("run-1", "wf-1", nil)
	require.NoError(t, runCtx.SetOutput("prepare", map[string]any{
		"payload": map[string]any{"region": "delta"},
	}))

	client := &fakeClient{output: map[string]any{"summary": "done"}}

	handler, err := NewHandler(map[string]any{
		"agent_id": "agent-7",
		"input":    "{{.outputs.prepare.payload}}",
	}, client)
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), runCtx, testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, "agent-7", client.agentID)
	assert.Equal(t, map[string]any{"region": "delta"}, client.input)
	assert.Equal(t, "agent-7", result.Output["agent_id"])
	assert.Equal(t, "done", result.Output["summary"])
}

func TestHandlerDefaultsToEmptyInput(t *testing.T) {
	client := &fakeClient{output: map[string]any{}}

	handler, err := NewHandler(map[string]any{"agent_id": "agent-7"}, client)
	require.NoError(t, err)

	_, err = handler.Execute(context.Background(), models.NewRunContext("run-1", "wf-1", nil), testLogger())
	require.NoError(t, err)
	assert.Empty(t, client.input)
}

func TestHandlerAgentFailureIsFailedResult(t *testing.T) {
	client := &fakeClient{err: errors.New("agent crashed")}

	handler, err := NewHandler(map[string]any{"agent_id": "agent-7"}, client)
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), models.NewRunContext("run-1", "wf-1", nil), testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.ResultStatusFailed, result.Status)
	assert.Contains(t, result.Error, "agent crashed")
}

func TestHandlerRejectsNonObjectInput(t *testing.T) {
	runCtx := models.NewRunContext("run-1", "wf-1", map[string]any{"region": "delta"})

	handler, err := NewHandler(map[string]any{
		"agent_id": "agent-7",
		"input":    "{{.input.region}}",
	}, &fakeClient{})
	require.NoError(t, err)

	_, err = handler.Execute(context.Background(), runCtx, testLogger())
	assert.ErrorContains(t, err, "must render to an object")
}
