// Package events defines the event types exchanged between the API, the
// worker and the rule engine.
package events

import (
	"time"
)

type EventType string

// Topic carries every engine event; consumers filter on the event type
// metadata.
const Topic = "terrawatch.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunRequestedEvent       EventType = "run.requested"
	RunStartedEvent         EventType = "run.started"
	RunFinishedEvent        EventType = "run.finished"
	RunCancelRequestedEvent EventType = "run.cancel.requested"
	TaskFinishedEvent       EventType = "task.finished"

	// Platform events emitted by the surrounding monitoring services,
	// consumed by the rule engine.
	PlatformEventType EventType = "platform.event"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RunRequested asks a worker to pick up and execute a pending run.
type RunRequested struct {
	BaseEvent

	RunID         string         `json:"run_id"`
	TriggerSource string         `json:"trigger_source"`
	TriggerData   map[string]any `json:"trigger_data,omitempty"`
}

func (e RunRequested) GetType() EventType {
	return RunRequestedEvent
}

// RunStarted is published when a worker begins executing a run.
type RunStarted struct {
	BaseEvent

	RunID string `json:"run_id"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

// RunFinished is published when a run reaches a terminal status, whatever
// that status is.
type RunFinished struct {
	BaseEvent

	RunID    string         `json:"run_id"`
	Status   string         `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

// RunCancelRequested asks whichever worker holds the run to stop it.
type RunCancelRequested struct {
	BaseEvent

	RunID string `json:"run_id"`
	JobID string `json:"job_id,omitempty"`
}

func (e RunCancelRequested) GetType() EventType {
	return RunCancelRequestedEvent
}

// TaskFinished is published when a single task inside a run reaches a
// terminal status.
type TaskFinished struct {
	BaseEvent

	RunID      string        `json:"run_id"`
	TaskID     string        `json:"task_id"`
	TaskName   string        `json:"task_name"`
	Status     string        `json:"status"`
	RetryCount int           `json:"retry_count"`
	Duration   time.Duration `json:"duration"`
}

func (e TaskFinished) GetType() EventType {
	return TaskFinishedEvent
}

// PlatformEvent is a platform occurrence (detection created, monitor alert,
// data updated, threshold exceeded) the rule engine matches rules against.
type PlatformEvent struct {
	BaseEvent

	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (e PlatformEvent) GetType() EventType {
	return PlatformEventType
}
