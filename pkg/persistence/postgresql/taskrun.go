package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// TaskRunRepository stores per-task execution records.
type TaskRunRepository struct {
	db *sql.DB
}

func NewTaskRunRepository(db *sql.DB) *TaskRunRepository {
	return &TaskRunRepository{db: db}
}

const taskRunColumns = `id, run_id, task_id, task_name, status, started_at, completed_at,
	input, output, logs, error, retry_count`

func (r *TaskRunRepository) Save(ctx context.Context, taskRun *models.TaskRun) error {
	input, err := jsonbValue(taskRun.Input)
	if err != nil {
		return persistence.NewStoreError("Save", "task run", taskRun.ID, err)
	}

	output, err := jsonbValue(taskRun.Output)
	if err != nil {
		return persistence.NewStoreError("Save", "task run", taskRun.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO task_runs (`+taskRunColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			input = EXCLUDED.input,
			output = EXCLUDED.output,
			logs = EXCLUDED.logs,
			error = EXCLUDED.error,
			retry_count = EXCLUDED.retry_count`,
		taskRun.ID, taskRun.RunID, taskRun.TaskID, taskRun.TaskName, taskRun.Status,
		taskRun.StartedAt, taskRun.CompletedAt, input, output,
		taskRun.Logs, taskRun.Error, taskRun.RetryCount,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "task run", taskRun.ID, err)
	}

	return nil
}

func (r *TaskRunRepository) GetByID(ctx context.Context, id string) (*models.TaskRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskRunColumns+` FROM task_runs WHERE id = $1`, id)

	taskRun, err := scanTaskRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "task run", id, persistence.ErrTaskRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "task run", id, err)
	}

	return taskRun, nil
}

func (r *TaskRunRepository) ListByRun(ctx context.Context, runID string) ([]*models.TaskRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskRunColumns+` FROM task_runs
		WHERE run_id = $1
		ORDER BY started_at ASC NULLS LAST`, runID)
	if err != nil {
		return nil, persistence.NewStoreError("ListByRun", "task run", runID, err)
	}
	defer rows.Close()

	taskRuns := make([]*models.TaskRun, 0)

	for rows.Next() {
		taskRun, err := scanTaskRun(rows)
		if err != nil {
			return nil, persistence.NewStoreError("ListByRun", "task run", runID, err)
		}

		taskRuns = append(taskRuns, taskRun)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ListByRun", "task run", runID, err)
	}

	return taskRuns, nil
}

func scanTaskRun(row rowScanner) (*models.TaskRun, error) {
	var (
		taskRun models.TaskRun
		input   []byte
		output  []byte
	)

	err := row.Scan(
		&taskRun.ID, &taskRun.RunID, &taskRun.TaskID, &taskRun.TaskName, &taskRun.Status,
		&taskRun.StartedAt, &taskRun.CompletedAt, &input, &output,
		&taskRun.Logs, &taskRun.Error, &taskRun.RetryCount,
	)
	if err != nil {
		return nil, err
	}

	if err := scanJSONB(input, &taskRun.Input); err != nil {
		return nil, err
	}

	if err := scanJSONB(output, &taskRun.Output); err != nil {
		return nil, err
	}

	return &taskRun, nil
}
