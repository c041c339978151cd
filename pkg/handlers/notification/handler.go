// Package notification implements the notification task type. The message is
// a template over the run context, so a workflow can report values computed
// by earlier tasks.
package notification

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

// Notifier delivers a message to a set of recipients.
type Notifier interface {
	Send(ctx context.Context, message string, recipients []string) (map[string]any, error)
}

type Handler struct {
	Message    string
	Recipients []string
	notifier   Notifier
}

func NewHandler(config map[string]any, notifier Notifier) (*Handler, error) {
	handler := &Handler{notifier: notifier}

	handler.Message, _ = config["message"].(string)

	if rawRecipients, ok := config["recipients"].([]any); ok {
		for _, raw := range rawRecipients {
			if s, ok := raw.(string); ok {
				handler.Recipients = append(handler.Recipients, s)
			}
		}
	}

	return handler, nil
}

func (h *Handler) Execute(ctx context.Context, runCtx *models.RunContext, logger *slog.Logger) (models.TaskResult, error) {
	logger = logger.With("module", "notification_handler", "recipients", len(h.Recipients))

	if len(h.Recipients) == 0 {
		return models.TaskResult{}, fmt.Errorf("notification requires at least one recipient")
	}

	rendered, err := template.RenderWithContext(h.Message, runCtx)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("failed to render message: %w", err)
	}

	message := fmt.Sprintf("%v", rendered)

	logger.InfoContext(ctx, "Sending notification")

	receipt, err := h.notifier.Send(ctx, message, h.Recipients)
	if err != nil {
		return models.FailedResult(
			fmt.Sprintf("Notification delivery failed: %s", err),
			err.Error(),
		), nil
	}

	result := map[string]any{
		"message":    message,
		"recipients": h.Recipients,
	}
	for key, value := range receipt {
		result[key] = value
	}

	return models.SuccessResult(result, fmt.Sprintf("Notified %d recipients", len(h.Recipients))), nil
}

// HTTPNotifier is the default Notifier, posting to the notification service.
type HTTPNotifier struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPNotifier(baseURL string) *HTTPNotifier {
	return &HTTPNotifier{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *HTTPNotifier) Send(ctx context.Context, message string, recipients []string) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"message":    message,
		"recipients": recipients,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notification service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("notification service returned %d: %s", resp.StatusCode, payload)
	}

	receipt := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &receipt); err != nil {
			return nil, fmt.Errorf("failed to decode notification response: %w", err)
		}
	}

	return receipt, nil
}
