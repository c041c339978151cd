// Package rules reacts to platform events by triggering workflows through
// automation rules.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/terrawatch/terrawatch/pkg/eventbus"
	"github.com/terrawatch/terrawatch/pkg/events"
	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
	"github.com/terrawatch/terrawatch/pkg/services"
)

// Trigger data keys stamped on runs created by the rule engine.
const (
	TriggerDataRuleID = "rule_id"
	TriggerDataEvent  = "event"
)

// Engine matches incoming platform events against the stored automation
// rules and triggers the bound workflows.
type Engine struct {
	store  persistence.Persistence
	runs   *services.RunService
	logger *slog.Logger
}

func NewEngine(store persistence.Persistence, runs *services.RunService, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		runs:   runs,
		logger: logger.With("module", "rules"),
	}
}

// Bind registers the engine on the subscriber for platform events.
func (e *Engine) Bind(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.PlatformEventType, func(ctx context.Context, event any) error {
		platformEvent, ok := event.(*events.PlatformEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		return e.HandlePlatformEvent(ctx, *platformEvent)
	})
}

// HandlePlatformEvent evaluates every rule registered for the event and
// triggers the matching ones. A failure on one rule does not stop the
// others; the first error is returned after all rules were evaluated.
func (e *Engine) HandlePlatformEvent(ctx context.Context, event events.PlatformEvent) error {
	matched, err := e.store.RuleRepository().ListByEvent(ctx, models.TriggerEvent(event.Event))
	if err != nil {
		return fmt.Errorf("failed to list rules for event %s: %w", event.Event, err)
	}

	if len(matched) == 0 {
		return nil
	}

	e.logger.InfoContext(ctx, "Evaluating automation rules", "event", event.Event, "rules", len(matched))

	now := time.Now().UTC()

	var firstErr error

	for _, rule := range matched {
		if err := e.evaluate(ctx, rule, event, now); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (e *Engine) evaluate(ctx context.Context, rule *models.AutomationRule, event events.PlatformEvent, now time.Time) error {
	logger := e.logger.With("rule_id", rule.ID, "workflow_id", rule.WorkflowID, "event", event.Event)

	if !rule.CanTrigger(now) {
		logger.DebugContext(ctx, "Rule cannot trigger", "status", rule.Status,
			"enabled", rule.Enabled, "throttled", rule.IsThrottled(now))

		return nil
	}

	if !ConditionsMatch(rule.Conditions, event.Payload) {
		logger.DebugContext(ctx, "Rule conditions did not match")

		return nil
	}

	run, err := e.runs.Trigger(ctx, rule.WorkflowID, rule.WorkflowInput, models.TriggerSourceRule, map[string]any{
		TriggerDataRuleID: rule.ID,
		TriggerDataEvent:  event.Event,
	})
	if err != nil {
		// A rule bound to a workflow that no longer runs is a configuration
		// problem, not a delivery failure. Log it and move on so the event
		// is not redelivered forever.
		if errors.Is(err, services.ErrWorkflowNotExecutable) || persistence.IsNotFound(err) {
			logger.WarnContext(ctx, "Rule points at a workflow that cannot run", "error", err)

			return nil
		}

		return fmt.Errorf("failed to trigger workflow for rule %s: %w", rule.ID, err)
	}

	rule.RecordTrigger(now)

	if err := e.store.RuleRepository().Save(ctx, rule); err != nil {
		logger.ErrorContext(ctx, "Failed to save rule after triggering", "error", err)
	}

	logger.InfoContext(ctx, "Rule triggered workflow", "run_id", run.ID, "trigger_count", rule.TriggerCount)

	return nil
}

// ConditionsMatch reports whether every condition key is present in the
// payload with an equal value. A rule with no conditions matches every
// event of its type.
func ConditionsMatch(conditions, payload map[string]any) bool {
	for key, want := range conditions {
		got, ok := payload[key]
		if !ok {
			return false
		}

		if !reflect.DeepEqual(want, got) {
			return false
		}
	}

	return true
}
