package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// ScheduleRepository stores schedule definitions.
type ScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, workflow_id, name, description, type, interval_minutes,
	cron_expression, scheduled_time, input, is_enabled, last_run, next_run, run_count,
	created_at, updated_at`

func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	input, err := jsonbValue(schedule.Input)
	if err != nil {
		return persistence.NewStoreError("Save", "schedule", schedule.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			interval_minutes = EXCLUDED.interval_minutes,
			cron_expression = EXCLUDED.cron_expression,
			scheduled_time = EXCLUDED.scheduled_time,
			input = EXCLUDED.input,
			is_enabled = EXCLUDED.is_enabled,
			last_run = EXCLUDED.last_run,
			next_run = EXCLUDED.next_run,
			run_count = EXCLUDED.run_count,
			updated_at = EXCLUDED.updated_at`,
		schedule.ID, schedule.WorkflowID, schedule.Name, schedule.Description,
		schedule.Type, schedule.IntervalMinutes, schedule.CronExpression,
		schedule.ScheduledTime, input, schedule.Enabled, schedule.LastRun,
		schedule.NextRun, schedule.RunCount, schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "schedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)

	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "schedule", id, persistence.ErrScheduleNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "schedule", id, err)
	}

	return schedule, nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*models.Schedule, error) {
	return r.query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY created_at ASC`)
}

func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	return r.query(ctx, `
		SELECT `+scheduleColumns+` FROM schedules
		WHERE is_enabled AND next_run IS NOT NULL AND next_run <= $1
		ORDER BY next_run ASC`, now)
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStoreError("Delete", "schedule", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "schedule", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Delete", "schedule", id, persistence.ErrScheduleNotFound)
	}

	return nil
}

func (r *ScheduleRepository) query(ctx context.Context, query string, args ...any) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("List", "schedule", "", err)
	}
	defer rows.Close()

	schedules := make([]*models.Schedule, 0)

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "schedule", "", err)
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("List", "schedule", "", err)
	}

	return schedules, nil
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		schedule models.Schedule
		input    []byte
	)

	err := row.Scan(
		&schedule.ID, &schedule.WorkflowID, &schedule.Name, &schedule.Description,
		&schedule.Type, &schedule.IntervalMinutes, &schedule.CronExpression,
		&schedule.ScheduledTime, &input, &schedule.Enabled, &schedule.LastRun,
		&schedule.NextRun, &schedule.RunCount, &schedule.CreatedAt, &schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := scanJSONB(input, &schedule.Input); err != nil {
		return nil, err
	}

	return &schedule, nil
}
