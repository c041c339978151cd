// Package agent implements the agent_execution task type. The heavy lifting
// happens in the agent service; this handler resolves the input payload from
// the run context and relays the invocation.
package agent

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
	"github.com/terrawatch/terrawatch/pkg/template"
)

// Client invokes an agent on the agent service and returns its output.
type Client interface {
	ExecuteAgent(ctx context.Context, agentID string, input map[string]any) (map[string]any, error)
}

type Handler struct {
	AgentID string
	Input   string
	client  Client
}

func NewHandler(config map[string]any, client Client) (*Handler, error) {
	handler := &Handler{client: client}

	handler.AgentID, _ = config["agent_id"].(string)
	handler.Input, _ = config["input"].(string)

	return handler, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "agent_handler", "agent_id", h.AgentID)
	logger.InfoContext(ctx, "Executing agent")

	input := map[string]any{}

	if h.Input != "" {
		rendered, err := template.RenderWithContext(h.Input, runCtx)
		if err != nil {
			return models.TaskResult{}, fmt.Errorf("failed to render agent input: %w", err)
		}

		obj, ok := rendered.(map[string]any)
		if !ok {
			return models.TaskResult{}, fmt.Errorf("agent input must render to an object, got %T", rendered)
		}

		input = obj
	}

	output, err := h.client.ExecuteAgent(ctx, h.AgentID, input)
	if err != nil {
		return models.FailedResult(
			fmt.Sprintf("Agent execution failed: %s", err),
			err.Error(),
		), nil
	}

	result := map[string]any{"agent_id": h.AgentID}
	for key, value := range output {
		result[key] = value
	}

	return models.SuccessResult(result, fmt.Sprintf("Agent %s executed", h.AgentID)), nil
}

// HTTPClient is the default Client, talking to the agent service over its
// internal HTTP API.
type HTTPClient struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) ExecuteAgent(ctx context.Context, agentID string, input map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent input: %w", err)
	}

	url := fmt.Sprintf("%s/agents/%s/execute", c.BaseURL, agentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create agent request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("agent service returned %d: %s", resp.StatusCode, payload)
	}

	output := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &output); err != nil {
			return nil, fmt.Errorf("failed to decode agent response: %w", err)
		}
	}

	return output, nil
}
