package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanExecute(t *testing.T) {
	now := time.Now().UTC()

	workflow := &Workflow{ID: "wf-1", Status: WorkflowStatusActive}
	assert.True(t, workflow.CanExecute())

	for _, status := range []WorkflowStatus{WorkflowStatusDraft, WorkflowStatusPaused, WorkflowStatusArchived} {
		workflow.Status = status
		assert.False(t, workflow.CanExecute(), "status %s", status)
	}

	workflow.Status = WorkflowStatusActive
	workflow.DeletedAt = &now
	assert.False(t, workflow.CanExecute())
}

func TestSuccessRate(t *testing.T) {
	workflow := &Workflow{}
	assert.InDelta(t, 0.0, workflow.SuccessRate(), 0.001)

	workflow.ExecutionCount = 3
	workflow.SuccessCount = 2
	assert.InDelta(t, 66.67, workflow.SuccessRate(), 0.001)
}

func TestRecordRun(t *testing.T) {
	now := time.Now().UTC()
	workflow := &Workflow{}

	workflow.RecordRun(true, now)
	workflow.RecordRun(false, now)

	assert.Equal(t, 2, workflow.ExecutionCount)
	assert.Equal(t, 1, workflow.SuccessCount)
	assert.Equal(t, 1, workflow.FailureCount)
	require.NotNil(t, workflow.LastExecution)
	assert.Equal(t, now, *workflow.LastExecution)
}

func TestActiveTasksFiltersDisabled(t *testing.T) {
	workflow := &Workflow{Tasks: []*Task{
		{ID: "a", Enabled: true},
		{ID: "b", Enabled: false},
		{ID: "c", Enabled: true},
	}}

	active := workflow.ActiveTasks()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "c", active[1].ID)
}

func TestValidateRejectsDuplicateOrder(t *testing.T) {
	workflow := &Workflow{Tasks: []*Task{
		{ID: "a", Order: 1},
		{ID: "b", Order: 1},
	}}

	err := workflow.Validate()
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "tasks", validationErr.Field)
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	workflow := &Workflow{Tasks: []*Task{
		{ID: "a", Order: 1, DependsOn: []string{"a"}},
	}}

	err := workflow.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestValidateRejectsDanglingDependency(t *testing.T) {
	workflow := &Workflow{Tasks: []*Task{
		{ID: "a", Order: 1, DependsOn: []string{"ghost"}},
	}}

	err := workflow.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestParseTaskType(t *testing.T) {
	parsed, err := ParseTaskType("api_call")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeAPICall, parsed)

	_, err = ParseTaskType("teleport")
	assert.Error(t, err)
}
