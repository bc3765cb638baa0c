package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"dripmail/internal/domain"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *domain.DripRule) error
	Update(ctx context.Context, rule *domain.DripRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.DripRule, error)
	List(ctx context.Context) ([]domain.DripRule, error)
	ListActiveByEventType(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error)
}

type GormRuleRepo struct {
	db *gorm.DB
}

func NewGormRuleRepo(db *gorm.DB) *GormRuleRepo {
	return &GormRuleRepo{db: db}
}

func (r *GormRuleRepo) Create(ctx context.Context, rule *domain.DripRule) error {
	model := ruleModelFromDomain(rule)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if rule != nil {
		*rule = *ruleModelToDomain(model)
	}
	return nil
}

func (r *GormRuleRepo) Update(ctx context.Context, rule *domain.DripRule) error {
	model := ruleModelFromDomain(rule)
	result := r.db.WithContext(ctx).
		Model(&DripRuleModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"name":             model.Name,
			"event_type":       model.EventType,
			"template_id":      model.TemplateID,
			"delay_seconds":    model.DelaySeconds,
			"cooldown_seconds": model.CooldownSeconds,
			"priority":         model.Priority,
			"start_at":         model.StartAt,
			"end_at":           model.EndAt,
			"active":           model.Active,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRuleRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&DripRuleModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRuleRepo) GetByID(ctx context.Context, id string) (*domain.DripRule, error) {
	var model DripRuleModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ruleModelToDomain(&model), nil
}

func (r *GormRuleRepo) List(ctx context.Context) ([]domain.DripRule, error) {
	var models []DripRuleModel
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	rules := make([]domain.DripRule, 0, len(models))
	for i := range models {
		rules = append(rules, *ruleModelToDomain(&models[i]))
	}

	return rules, nil
}

func (r *GormRuleRepo) ListActiveByEventType(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error) {
	var models []DripRuleModel
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND active", eventType).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	rules := make([]domain.DripRule, 0, len(models))
	for i := range models {
		rules = append(rules, *ruleModelToDomain(&models[i]))
	}

	return rules, nil
}
