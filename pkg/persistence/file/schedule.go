package file

import (
	"context"
	"sort"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// ScheduleRepository stores schedule definitions as JSON documents.
type ScheduleRepository struct {
	store *store
}

func NewScheduleRepository(root string) *ScheduleRepository {
	return &ScheduleRepository{store: newStore(root, "schedules")}
}

func (r *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	if err := r.store.write(schedule.ID, schedule); err != nil {
		return persistence.NewStoreError("Save", "schedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) GetByID(_ context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule

	found, err := r.store.read(id, &schedule)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "schedule", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "schedule", id, persistence.ErrScheduleNotFound)
	}

	return &schedule, nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*models.Schedule, error) {
	return r.list(func(*models.Schedule) bool { return true })
}

func (r *ScheduleRepository) ListDue(_ context.Context, now time.Time) ([]*models.Schedule, error) {
	return r.list(func(s *models.Schedule) bool { return s.IsDue(now) })
}

func (r *ScheduleRepository) Delete(_ context.Context, id string) error {
	removed, err := r.store.remove(id)
	if err != nil {
		return persistence.NewStoreError("Delete", "schedule", id, err)
	}

	if !removed {
		return persistence.NewStoreError("Delete", "schedule", id, persistence.ErrScheduleNotFound)
	}

	return nil
}

func (r *ScheduleRepository) list(keep func(*models.Schedule) bool) ([]*models.Schedule, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, persistence.NewStoreError("List", "schedule", "", err)
	}

	schedules := make([]*models.Schedule, 0, len(ids))

	for _, id := range ids {
		var schedule models.Schedule

		found, err := r.store.read(id, &schedule)
		if err != nil {
			return nil, persistence.NewStoreError("List", "schedule", id, err)
		}

		if !found || !keep(&schedule) {
			continue
		}

		schedules = append(schedules, &schedule)
	}

	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].CreatedAt.Before(schedules[j].CreatedAt)
	})

	return schedules, nil
}
