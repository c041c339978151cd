package models

import "time"

// RuleStatus is the lifecycle state of an automation rule.
type RuleStatus string

const (
	RuleStatusActive   RuleStatus = "active"
	RuleStatusInactive RuleStatus = "inactive"
)

// TriggerEvent is the closed set of platform events a rule can react to.
type TriggerEvent string

const (
	TriggerEventDetectionCreated  TriggerEvent = "detection_created"
	TriggerEventMonitorAlert      TriggerEvent = "monitor_alert"
	TriggerEventDataUpdated       TriggerEvent = "data_updated"
	TriggerEventSchedule          TriggerEvent = "schedule"
	TriggerEventThresholdExceeded TriggerEvent = "threshold_exceeded"
)

// AutomationRule binds a platform event to a workflow invocation, with an
// optional throttle window to keep noisy events from stampeding the engine.
type AutomationRule struct {
	ID          string     `json:"id"   validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	Status      RuleStatus `json:"status" validate:"required,oneof=active inactive"`
	Enabled     bool       `json:"is_enabled"`

	TriggerEvent TriggerEvent   `json:"trigger_event" validate:"required"`
	Conditions   map[string]any `json:"conditions,omitempty"`

	WorkflowID    string         `json:"workflow_id" validate:"required"`
	WorkflowInput map[string]any `json:"workflow_input,omitempty"`

	ThrottleMinutes int        `json:"throttle_minutes"`
	TriggerCount    int        `json:"trigger_count"`
	LastTriggered   *time.Time `json:"last_triggered,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsThrottled reports whether the rule fired too recently. A rule with
// ThrottleMinutes == 0 never throttles.
func (r *AutomationRule) IsThrottled(now time.Time) bool {
	if r.ThrottleMinutes == 0 || r.LastTriggered == nil {
		return false
	}

	window := time.Duration(r.ThrottleMinutes) * time.Minute

	return now.Sub(*r.LastTriggered) < window
}

// CanTrigger reports whether the rule may fire right now.
func (r *AutomationRule) CanTrigger(now time.Time) bool {
	return r.Status == RuleStatusActive && r.Enabled && !r.IsThrottled(now)
}

// RecordTrigger stamps one firing of the rule.
func (r *AutomationRule) RecordTrigger(now time.Time) {
	r.TriggerCount++
	fired := now
	r.LastTriggered = &fired
	r.UpdatedAt = now
}
