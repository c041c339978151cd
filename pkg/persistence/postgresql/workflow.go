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

// WorkflowRepository stores workflows with tasks in a JSONB column.
type WorkflowRepository struct {
	db *sql.DB
}

func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

const workflowColumns = `id, name, description, status, tasks, trigger_type, trigger_config,
	timeout_minutes, execution_count, success_count, failure_count, last_execution,
	tags, metadata, owner, created_at, updated_at, deleted_at`

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	tasks, err := jsonbValue(workflow.Tasks)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	triggerConfig, err := jsonbValue(workflow.TriggerConfig)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	tags, err := jsonbValue(workflow.Tags)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	metadata, err := jsonbValue(workflow.Metadata)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			tasks = EXCLUDED.tasks,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			timeout_minutes = EXCLUDED.timeout_minutes,
			execution_count = EXCLUDED.execution_count,
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			last_execution = EXCLUDED.last_execution,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`,
		workflow.ID, workflow.Name, workflow.Description, workflow.Status, tasks,
		workflow.TriggerType, triggerConfig, workflow.TimeoutMinutes,
		workflow.ExecutionCount, workflow.SuccessCount, workflow.FailureCount,
		workflow.LastExecution, tags, metadata, workflow.Owner,
		workflow.CreatedAt, workflow.UpdatedAt, workflow.DeletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL`, id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE deleted_at IS NULL`
	args := []any{}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.Owner != "" {
		args = append(args, opts.Owner)
		query += fmt.Sprintf(" AND owner = $%d", len(args))
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
		return nil, persistence.NewStoreError("List", "workflow", "", err)
	}
	defer rows.Close()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "workflow", "", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("List", "workflow", "", err)
	}

	return workflows, nil
}

// RecordRun increments the counters in place so concurrent finalizations
// never lose an update.
func (r *WorkflowRepository) RecordRun(ctx context.Context, id string, success bool, finishedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET
			execution_count = execution_count + 1,
			success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			failure_count = failure_count + CASE WHEN $2 THEN 0 ELSE 1 END,
			last_execution = $3,
			updated_at = $3
		WHERE id = $1`, id, success, finishedAt)
	if err != nil {
		return persistence.NewStoreError("RecordRun", "workflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("RecordRun", "workflow", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("RecordRun", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, time.Now().UTC())
	if err != nil {
		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		tasks         []byte
		triggerConfig []byte
		tags          []byte
		metadata      []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.Name, &workflow.Description, &workflow.Status, &tasks,
		&workflow.TriggerType, &triggerConfig, &workflow.TimeoutMinutes,
		&workflow.ExecutionCount, &workflow.SuccessCount, &workflow.FailureCount,
		&workflow.LastExecution, &tags, &metadata, &workflow.Owner,
		&workflow.CreatedAt, &workflow.UpdatedAt, &workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := scanJSONB(tasks, &workflow.Tasks); err != nil {
		return nil, err
	}

	if err := scanJSONB(triggerConfig, &workflow.TriggerConfig); err != nil {
		return nil, err
	}

	if err := scanJSONB(tags, &workflow.Tags); err != nil {
		return nil, err
	}

	if err := scanJSONB(metadata, &workflow.Metadata); err != nil {
		return nil, err
	}

	return &workflow, nil
}
