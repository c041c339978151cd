package script

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/terrawatch/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlerEvaluatesExpression(t *testing.T) {
	runCtx := models.NewRunContext("run-1", "wf-1", nil)
	require.NoError(t, runCtx.SetOutput("detect", map[string]any{"area_km2": float64(12.5)}))

	handler, err := NewHandler(map[string]any{"script": "{{.outputs.detect.area_km2}}"})
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), runCtx, testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, float64(12.5), result.Output["result"])
}

func TestHandlerBuildsStructuredResults(t *testing.T) {
	runCtx := models.NewRunContext("run-1", "wf-1", map[string]any{"region": "delta"})

	handler, err := NewHandler(map[string]any{
		"script": `{"region": "{{.input.region}}", "flagged": true}`,
	})
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), runCtx, testLogger())
	require.NoError(t, err)

	obj, ok := result.Output["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "delta", obj["region"])
	assert.Equal(t, true, obj["flagged"])
}

func TestHandlerRejectsUnknownReference(t *testing.T) {
	handler, err := NewHandler(map[string]any{"script": "{{.outputs.missing.value}}"})
	require.NoError(t, err)

	_, err = handler.Execute(context.Background(), models.NewRunContext("run-1", "wf-1", nil), testLogger())
	assert.ErrorContains(t, err, "script evaluation failed")
}
