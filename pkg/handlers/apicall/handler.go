// Package apicall implements the api_call task type: one HTTP request with
// the response captured into the task output.
package apicall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/template"
)

const defaultTimeout = 30 * time.Second

type Handler struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration

	client *http.Client
}

func NewHandler(config map[string]any) (*Handler, error) {
	url, _ := config["url"].(string)
	method, _ := config["method"].(string)
	body, _ := config["body"].(string)

	headers := make(map[string]string)
	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersConfig {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	timeout := defaultTimeout
	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return &Handler{
		URL:     url,
		Method:  strings.ToUpper(method),
		Headers: headers,
		Body:    body,
		Timeout: timeout,
		client:  &http.Client{},
	}, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "apicall_handler", "method", h.Method, "url", h.URL)
	logger.InfoContext(ctx, "Executing api_call task")

	body, err := h.renderBody(runCtx)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("failed to render request body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, h.Method, h.URL, bodyReader)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var response any
	if json.Unmarshal(respBytes, &response) != nil {
		response = string(respBytes)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"response":    response,
	}

	logs := fmt.Sprintf("API call completed: %s %s -> %d", h.Method, h.URL, resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		return models.FailedResult(
			fmt.Sprintf("api_call returned status %d", resp.StatusCode), logs,
		), nil
	}

	logger.InfoContext(ctx, "api_call task completed", "status_code", resp.StatusCode)

	return models.SuccessResult(output, logs), nil
}

// renderBody expands template expressions in the configured body against the
// run context, so requests can carry earlier task outputs.
func (h *Handler) renderBody(runCtx *models.RunContext) (string, error) {
	if h.Body == "" || !strings.Contains(h.Body, "{{") {
		return h.Body, nil
	}

	rendered, err := template.RenderWithContext(h.Body, runCtx)
	if err != nil {
		return "", err
	}

	if s, ok := rendered.(string); ok {
		return s, nil
	}

	encoded, err := json.Marshal(rendered)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}
