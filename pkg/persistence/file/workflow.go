package file

import (
	"context"
	"sort"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// WorkflowRepository stores workflows as JSON documents. Soft-deleted
// workflows keep their file but are filtered out of every read.
type WorkflowRepository struct {
	store *store
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{store: newStore(root, "workflows")}
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if err := r.store.write(workflow.ID, workflow); err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := r.store.read(id, &workflow)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, err)
	}

	if !found || workflow.DeletedAt != nil {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, persistence.NewStoreError("List", "workflow", "", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow

		found, err := r.store.read(id, &workflow)
		if err != nil {
			return nil, persistence.NewStoreError("List", "workflow", id, err)
		}

		if !found || workflow.DeletedAt != nil {
			continue
		}

		if opts.Status != nil && workflow.Status != *opts.Status {
			continue
		}

		if opts.Owner != "" && workflow.Owner != opts.Owner {
			continue
		}

		workflows = append(workflows, &workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return paginate(workflows, opts.Offset, opts.Limit), nil
}

// RecordRun re-reads the workflow under the store lock and folds the run
// result into its counters, leaving every other field as stored.
func (r *WorkflowRepository) RecordRun(_ context.Context, id string, success bool, finishedAt time.Time) error {
	var workflow models.Workflow

	found, err := r.store.update(id, &workflow, func() error {
		workflow.RecordRun(success, finishedAt)

		return nil
	})
	if err != nil {
		return persistence.NewStoreError("RecordRun", "workflow", id, err)
	}

	if !found {
		return persistence.NewStoreError("RecordRun", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// Delete marks the workflow deleted. Runs referencing it stay readable.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	workflow, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now
	workflow.UpdatedAt = now

	if err := r.store.write(id, workflow); err != nil {
		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}

	items = items[offset:]

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
