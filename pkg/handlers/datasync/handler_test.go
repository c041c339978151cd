package datasync

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
	dataSourceID string
	summary      map[string]any
	err          error
}

func (f *fakeClient) SyncDataSource(_ context.Context, dataSourceID string) (map[string]any, error) {
	f.dataSourceID = dataSourceID

	return f.summary, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlerTriggersSync(t *testing.T) {
	client := &fakeClient{summary: map[string]any{"records_ingested": float64(120)}}

	handler, err := NewHandler(map[string]any{"data_source_id": "ds-3"}, client)
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), models.NewRunContext("run-1", "wf-1", nil), testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, "ds-3", client.dataSourceID)
	assert.Equal(t, "ds-3", result.Output["data_source_id"])
	assert.Equal(t, float64(120), result.Output["records_ingested"])
}

func TestHandlerSyncFailureIsFailedResult(t *testing.T) {
	client := &fakeClient{err: errors.New("source unreachable")}

	handler, err := NewHandler(map[string]any{"data_source_id": "ds-3"}, client)
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), models.NewRunContext("run-1", "wf-1", nil), testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.ResultStatusFailed, result.Status)
	assert.Contains(t, result.Error, "source unreachable")
}
