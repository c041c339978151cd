package file

import (
	"context"
	"sort"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// RunRepository stores workflow runs as JSON documents.
type RunRepository struct {
	store *store
}

func NewRunRepository(root string) *RunRepository {
	return &RunRepository{store: newStore(root, "runs")}
}

func (r *RunRepository) Save(_ context.Context, run *models.Run) error {
	if err := r.store.write(run.ID, run); err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, err)
	}

	return nil
}

func (r *RunRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	var run models.Run

	found, err := r.store.read(id, &run)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "run", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "run", id, persistence.ErrRunNotFound)
	}

	return &run, nil
}

func (r *RunRepository) List(_ context.Context, opts persistence.ListRunsOptions) ([]*models.Run, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, persistence.NewStoreError("List", "run", "", err)
	}

	runs := make([]*models.Run, 0, len(ids))

	for _, id := range ids {
		var run models.Run

		found, err := r.store.read(id, &run)
		if err != nil {
			return nil, persistence.NewStoreError("List", "run", id, err)
		}

		if !found {
			continue
		}

		if opts.WorkflowID != "" && run.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && run.Status != *opts.Status {
			continue
		}

		runs = append(runs, &run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return paginate(runs, opts.Offset, opts.Limit), nil
}

func (r *RunRepository) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	ids, err := r.store.ids()
	if err != nil {
		return 0, persistence.NewStoreError("DeleteFinishedBefore", "run", "", err)
	}

	deleted := 0

	for _, id := range ids {
		var run models.Run

		found, err := r.store.read(id, &run)
		if err != nil {
			return deleted, persistence.NewStoreError("DeleteFinishedBefore", "run", id, err)
		}

		if !found || !run.Status.IsTerminal() || !run.CreatedAt.Before(cutoff) {
			continue
		}

		removed, err := r.store.remove(id)
		if err != nil {
			return deleted, persistence.NewStoreError("DeleteFinishedBefore", "run", id, err)
		}

		if removed {
			deleted++
		}
	}

	return deleted, nil
}
