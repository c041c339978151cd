package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// RunRepository stores workflow runs.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, workflow_id, status, started_at, completed_at, input, output,
	trigger_source, trigger_data, logs, error_message,
	tasks_total, tasks_completed, tasks_failed, job_id, created_at, updated_at`

func (r *RunRepository) Save(ctx context.Context, run *models.Run) error {
	input, err := jsonbValue(run.Input)
	if err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, err)
	}

	output, err := jsonbValue(run.Output)
	if err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, err)
	}

	triggerData, err := jsonbValue(run.TriggerData)
	if err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			input = EXCLUDED.input,
			output = EXCLUDED.output,
			trigger_source = EXCLUDED.trigger_source,
			trigger_data = EXCLUDED.trigger_data,
			logs = EXCLUDED.logs,
			error_message = EXCLUDED.error_message,
			tasks_total = EXCLUDED.tasks_total,
			tasks_completed = EXCLUDED.tasks_completed,
			tasks_failed = EXCLUDED.tasks_failed,
			job_id = EXCLUDED.job_id,
			updated_at = EXCLUDED.updated_at`,
		run.ID, run.WorkflowID, run.Status, run.StartedAt, run.CompletedAt,
		input, output, run.TriggerSource, triggerData, run.Logs, run.ErrorMessage,
		run.TasksTotal, run.TasksCompleted, run.TasksFailed, run.JobID,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, err)
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "run", id, persistence.ErrRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "run", id, err)
	}

	return run, nil
}

func (r *RunRepository) List(ctx context.Context, opts persistence.ListRunsOptions) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE TRUE`
	args := []any{}

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("List", "run", "", err)
	}
	defer rows.Close()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "run", "", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("List", "run", "", err)
	}

	return runs, nil
}

func (r *RunRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE created_at < $1
		  AND status IN ('success', 'failed', 'cancelled', 'timeout')`, cutoff)
	if err != nil {
		return 0, persistence.NewStoreError("DeleteFinishedBefore", "run", "", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, persistence.NewStoreError("DeleteFinishedBefore", "run", "", err)
	}

	return int(affected), nil
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run         models.Run
		input       []byte
		output      []byte
		triggerData []byte
	)

	err := row.Scan(
		&run.ID, &run.WorkflowID, &run.Status, &run.StartedAt, &run.CompletedAt,
		&input, &output, &run.TriggerSource, &triggerData, &run.Logs, &run.ErrorMessage,
		&run.TasksTotal, &run.TasksCompleted, &run.TasksFailed, &run.JobID,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := scanJSONB(input, &run.Input); err != nil {
		return nil, err
	}

	if err := scanJSONB(output, &run.Output); err != nil {
		return nil, err
	}

	if err := scanJSONB(triggerData, &run.TriggerData); err != nil {
		return nil, err
	}

	return &run, nil
}
