// Package file provides file-based persistence, one JSON document per
// entity. It backs local development and single-node deployments.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	runRepo      *RunRepository
	taskRunRepo  *TaskRunRepository
	scheduleRepo *ScheduleRepository
	ruleRepo     *RuleRepository
}

// NewPersistence creates file persistence rooted at the given directory. A
// "file://" prefix is tolerated so the persistence URL can be passed as-is.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		runRepo:      NewRunRepository(cleanRoot),
		taskRunRepo:  NewTaskRunRepository(cleanRoot),
		scheduleRepo: NewScheduleRepository(cleanRoot),
		ruleRepo:     NewRuleRepository(cleanRoot),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) RunRepository() persistence.RunRepository {
	return p.runRepo
}

func (p *Persistence) TaskRunRepository() persistence.TaskRunRepository {
	return p.taskRunRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

func (p *Persistence) RuleRepository() persistence.RuleRepository {
	return p.ruleRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return err
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
