package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// RuleRepository stores automation rules.
type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, name, description, status, is_enabled, trigger_event, conditions,
	workflow_id, workflow_input, throttle_minutes, trigger_count, last_triggered,
	created_at, updated_at`

func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	conditions, err := jsonbValue(rule.Conditions)
	if err != nil {
		return persistence.NewStoreError("Save", "rule", rule.ID, err)
	}

	workflowInput, err := jsonbValue(rule.WorkflowInput)
	if err != nil {
		return persistence.NewStoreError("Save", "rule", rule.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automation_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			is_enabled = EXCLUDED.is_enabled,
			trigger_event = EXCLUDED.trigger_event,
			conditions = EXCLUDED.conditions,
			workflow_id = EXCLUDED.workflow_id,
			workflow_input = EXCLUDED.workflow_input,
			throttle_minutes = EXCLUDED.throttle_minutes,
			trigger_count = EXCLUDED.trigger_count,
			last_triggered = EXCLUDED.last_triggered,
			updated_at = EXCLUDED.updated_at`,
		rule.ID, rule.Name, rule.Description, rule.Status, rule.Enabled,
		rule.TriggerEvent, conditions, rule.WorkflowID, workflowInput,
		rule.ThrottleMinutes, rule.TriggerCount, rule.LastTriggered,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "rule", rule.ID, err)
	}

	return nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1`, id)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "rule", id, persistence.ErrRuleNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "rule", id, err)
	}

	return rule, nil
}

func (r *RuleRepository) List(ctx context.Context) ([]*models.AutomationRule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM automation_rules ORDER BY created_at ASC`)
}

func (r *RuleRepository) ListByEvent(ctx context.Context, event models.TriggerEvent) ([]*models.AutomationRule, error) {
	return r.query(ctx, `
		SELECT `+ruleColumns+` FROM automation_rules
		WHERE trigger_event = $1
		ORDER BY created_at ASC`, event)
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStoreError("Delete", "rule", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "rule", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Delete", "rule", id, persistence.ErrRuleNotFound)
	}

	return nil
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...any) ([]*models.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("List", "rule", "", err)
	}
	defer rows.Close()

	rules := make([]*models.AutomationRule, 0)

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "rule", "", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("List", "rule", "", err)
	}

	return rules, nil
}

func scanRule(row rowScanner) (*models.AutomationRule, error) {
	var (
		rule          models.AutomationRule
		conditions    []byte
		workflowInput []byte
	)

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Status, &rule.Enabled,
		&rule.TriggerEvent, &conditions, &rule.WorkflowID, &workflowInput,
		&rule.ThrottleMinutes, &rule.TriggerCount, &rule.LastTriggered,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := scanJSONB(conditions, &rule.Conditions); err != nil {
		return nil, err
	}

	if err := scanJSONB(workflowInput, &rule.WorkflowInput); err != nil {
		return nil, err
	}

	return &rule, nil
}
