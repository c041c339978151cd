package file

import (
	"context"
	"sort"

	"github.com/terrawatch/terrawatch/pkg/models"
	"github.com/terrawatch/terrawatch/pkg/persistence"
)

// RuleRepository stores automation rules as JSON documents.
type RuleRepository struct {
	store *store
}

func NewRuleRepository(root string) *RuleRepository {
	return &RuleRepository{store: newStore(root, "rules")}
}

func (r *RuleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	if err := r.store.write(rule.ID, rule); err != nil {
		return persistence.NewStoreError("Save", "rule", rule.ID, err)
	}

	return nil
}

func (r *RuleRepository) GetByID(_ context.Context, id string) (*models.AutomationRule, error) {
	var rule models.AutomationRule

	found, err := r.store.read(id, &rule)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "rule", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "rule", id, persistence.ErrRuleNotFound)
	}

	return &rule, nil
}

func (r *RuleRepository) List(ctx context.Context) ([]*models.AutomationRule, error) {
	return r.list(func(*models.AutomationRule) bool { return true })
}

func (r *RuleRepository) ListByEvent(_ context.Context, event models.TriggerEvent) ([]*models.AutomationRule, error) {
	return r.list(func(rule *models.AutomationRule) bool { return rule.TriggerEvent == event })
}

func (r *RuleRepository) Delete(_ context.Context, id string) error {
	removed, err := r.store.remove(id)
	if err != nil {
		return persistence.NewStoreError("Delete", "rule", id, err)
	}

	if !removed {
		return persistence.NewStoreError("Delete", "rule", id, persistence.ErrRuleNotFound)
	}

	return nil
}

func (r *RuleRepository) list(keep func(*models.AutomationRule) bool) ([]*models.AutomationRule, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, persistence.NewStoreError("List", "rule", "", err)
	}

	rules := make([]*models.AutomationRule, 0, len(ids))

	for _, id := range ids {
		var rule models.AutomationRule

		found, err := r.store.read(id, &rule)
		if err != nil {
			return nil, persistence.NewStoreError("List", "rule", id, err)
		}

		if !found || !keep(&rule) {
			continue
		}

		rules = append(rules, &rule)
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})

	return rules, nil
}
