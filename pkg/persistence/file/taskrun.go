package file

import (
	"context"
	"sort"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// TaskRunRepository stores per-task execution records as JSON documents.
type TaskRunRepository struct {
	store *store
}

func NewTaskRunRepository(root string) *TaskRunRepository {
	return &TaskRunRepository{store: newStore(root, "task_runs")}
}

func (r *TaskRunRepository) Save(_ context.Context, taskRun *models.TaskRun) error {
	if err := r.store.write(taskRun.ID, taskRun); err != nil {
		return persistence.NewStoreError("Save", "task run", taskRun.ID, err)
	}

	return nil
}

func (r *TaskRunRepository) GetByID(_ context.Context, id string) (*models.TaskRun, error) {
	var taskRun models.TaskRun

	found, err := r.store.read(id, &taskRun)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "task run", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "task run", id, persistence.ErrTaskRunNotFound)
	}

	return &taskRun, nil
}

func (r *TaskRunRepository) ListByRun(_ context.Context, runID string) ([]*models.TaskRun, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, persistence.NewStoreError("ListByRun", "task run", "", err)
	}

	taskRuns := make([]*models.TaskRun, 0, len(ids))

	for _, id := range ids {
		var taskRun models.TaskRun

		found, err := r.store.read(id, &taskRun)
		if err != nil {
			return nil, persistence.NewStoreError("ListByRun", "task run", id, err)
		}

		if !found || taskRun.RunID != runID {
			continue
		}

		taskRuns = append(taskRuns, &taskRun)
	}

	sort.Slice(taskRuns, func(i, j int) bool {
		a, b := taskRuns[i].StartedAt, taskRuns[j].StartedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}

		return a.Before(*b)
	})

	return taskRuns, nil
}
