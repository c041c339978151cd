// Package workers runs the event-driven execution side of the engine: a
// manager subscribes to run requests and drives each one through the
// orchestrator.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/terrawatch/terrawatch/pkg/engine"
	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/events"
	"github.com/terrawatch/terrawatch/pkg/otelhelper"
)

// Manager wires the event bus to the orchestrator. Each run request is
// executed on its own goroutine so a long run does not block the
// subscription loop.
type Manager struct {
	id           string
	orchestrator *engine.Orchestrator
	cancels      *engine.CancelRegistry
	eventBus     eventbus.EventBus
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewManager builds a worker manager. A nil tracer disables run spans.
func NewManager(
	id string,
	orchestrator *engine.Orchestrator,
	cancels *engine.CancelRegistry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		id:           id,
		orchestrator: orchestrator,
		cancels:      cancels,
		eventBus:     eventBus,
		tracer:       tracer,
		logger:       logger.With("module", "worker", "worker_id", id),
	}
}

// Start subscribes and blocks until SIGINT or SIGTERM.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting worker manager")

	if err := m.eventBus.Handle(events.RunRequestedEvent, m.handleRunRequested); err != nil {
		return err
	}

	if err := m.eventBus.Handle(events.RunCancelRequestedEvent, m.handleCancelRequested); err != nil {
		return err
	}

	if err := m.eventBus.Subscribe(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	m.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		m.logger.InfoContext(ctx, "Shutting down worker...")
	case <-ctx.Done():
	}

	return nil
}

func (m *Manager) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	logger := m.logger.With(
		"run_id", requested.RunID,
		"workflow_id", requested.WorkflowID,
		"trigger_source", requested.TriggerSource,
	)
	logger.InfoContext(ctx, "Processing run request")

	go func() {
		runCtx := context.WithoutCancel(ctx)

		var span trace.Span

		if m.tracer != nil {
			runCtx, span = otelhelper.StartSpan(runCtx, m.tracer, "run.execute",
				attribute.String(otelhelper.RunIDKey, requested.RunID),
				attribute.String(otelhelper.WorkflowIDKey, requested.WorkflowID),
				attribute.String(otelhelper.WorkerIDKey, m.id),
			)
			defer span.End()
		}

		if err := m.orchestrator.Execute(runCtx, requested.RunID); err != nil {
			logger.Error("Run execution failed", "error", err)

			if span != nil {
				otelhelper.SetError(span, err)
			}
		}
	}()

	return nil
}

func (m *Manager) handleCancelRequested(ctx context.Context, event any) error {
	cancelRequested, ok := event.(*events.RunCancelRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	// Every worker sees the request; only the one holding the run acts.
	if m.cancels.Cancel(cancelRequested.RunID) {
		m.logger.InfoContext(ctx, "Cancelled in-flight run", "run_id", cancelRequested.RunID)
	}

	return nil
}
