package models

import "fmt"

// RunContext is the key-value store threaded through a run. It carries the
// trigger input plus the output of every completed task, keyed by task name.
// The context is owned by exactly one run; within that run it is append-only:
// each task writes its own key once and later tasks only read.
type RunContext struct {
	RunID      string                    `json:"run_id"`
	WorkflowID string                    `json:"workflow_id"`
	Input      map[string]any            `json:"input,omitempty"`
	Outputs    map[string]map[string]any `json:"outputs"`
	Metadata   map[string]any            `json:"metadata,omitempty"`
}

// NewRunContext builds the context for a fresh run.
func NewRunContext(runID, workflowID string, input map[string]any) *RunContext {
	if input == nil {
		input = make(map[string]any)
	}

	return &RunContext{
		RunID:      runID,
		WorkflowID: workflowID,
		Input:      input,
		Outputs:    make(map[string]map[string]any),
		Metadata:   make(map[string]any),
	}
}

// SetOutput records a task's output under its name. A second write to the
// same name is a programming error in the orchestration loop, not a
// recoverable condition, so it is rejected.
func (c *RunContext) SetOutput(taskName string, output map[string]any) error {
	if _, exists := c.Outputs[taskName]; exists {
		return fmt.Errorf("context key %q already written", taskName)
	}

	if output == nil {
		output = make(map[string]any)
	}

	c.Outputs[taskName] = output

	return nil
}

// Output returns the recorded output of a named task.
func (c *RunContext) Output(taskName string) (map[string]any, bool) {
	out, ok := c.Outputs[taskName]

	return out, ok
}

// Snapshot returns a flat view of the context suitable for persisting as a
// task run's input snapshot and for template rendering.
func (c *RunContext) Snapshot() map[string]any {
	outputs := make(map[string]any, len(c.Outputs))
	for name, out := range c.Outputs {
		outputs[name] = out
	}

	return map[string]any{
		"input":   c.Input,
		"outputs": outputs,
		"run": map[string]any{
			"id":          c.RunID,
			"workflow_id": c.WorkflowID,
		},
	}
}
