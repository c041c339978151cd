// Package datasync implements the data_sync task type, triggering an
// ingestion cycle for a geodata source via the sync collaborator.
package datasync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
)

// Client starts a sync cycle for a data source and returns its summary.
type Client interface {
	SyncDataSource(ctx context.Context, dataSourceID string) (map[string]any, error)
}

type Handler struct {
	DataSourceID string
	client       Client
}

func NewHandler(config map[string]any, client Client) (*Handler, error) {
	handler := &Handler{client: client}

	handler.DataSourceID, _ = config["data_source_id"].(string)

	return handler, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "datasync_handler", "data_source_id", h.DataSourceID)
	logger.InfoContext(ctx, "Triggering data source sync")

	summary, err := h.client.SyncDataSource(ctx, h.DataSourceID)
	if err != nil {
		return models.FailedResult(
			fmt.Sprintf("Data sync failed: %s", err),
			err.Error(),
		), nil
	}

	result := map[string]any{"data_source_id": h.DataSourceID}
	for key, value := range summary {
		result[key] = value
	}

	return models.SuccessResult(result, fmt.Sprintf("Data source %s synced", h.DataSourceID)), nil
}

// HTTPClient is the default Client for the geodata sync service.
type HTTPClient struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *HTTPClient) SyncDataSource(ctx context.Context, dataSourceID string) (map[string]any, error) {
	url := fmt.Sprintf("%s/data-sources/%s/sync", c.BaseURL, dataSourceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, payload)
	}

	summary := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode sync response: %w", err)
		}
	}

	return summary, nil
}
