// Package monitorcheck implements the monitor_check task type, asking the
// monitoring collaborator to evaluate a monitor now instead of waiting for
// its own cadence.
package monitorcheck

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

// Client runs an on-demand evaluation of a monitor.
type Client interface {
	CheckMonitor(ctx context.Context, monitorID string) (map[string]any, error)
}

type Handler struct {
	MonitorID string
	client    Client
}

func NewHandler(config map[string]any, client Client) (*Handler, error) {
	handler := &Handler{client: client}

	handler.MonitorID, _ = config["monitor_id"].(string)

	return handler, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "monitorcheck_handler", "monitor_id", h.MonitorID)
	logger.InfoContext(ctx, "Checking monitor")

	report, err := h.client.CheckMonitor(ctx, h.MonitorID)
	if err != nil {
		return models.FailedResult(
			fmt.Sprintf("Monitor check failed: %s", err),
			err.Error(),
		), nil
	}

	result := map[string]any{"monitor_id": h.MonitorID}
	for key, value := range report {
		result[key] = value
	}

	return models.SuccessResult(result, fmt.Sprintf("Monitor %s checked", h.MonitorID)), nil
}

// HTTPClient is the default Client for the monitoring service.
type HTTPClient struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *HTTPClient) CheckMonitor(ctx context.Context, monitorID string) (map[string]any, error) {
	url := fmt.Sprintf("%s/monitors/%s/check", c.BaseURL, monitorID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor check request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monitoring service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitor check response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("monitoring service returned %d: %s", resp.StatusCode, payload)
	}

	report := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, fmt.Errorf("failed to decode monitor check response: %w", err)
		}
	}

	return report, nil
}
