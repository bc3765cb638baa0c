package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dripmail/internal/domain"
	"dripmail/internal/repository"
)

// AdminService manages templates and drip rules. Rules always reference an
// existing template; the reference is checked on create and update, not at
// send time, where a missing template suppresses instead.
type AdminService struct {
	templates repository.TemplateRepository
	rules     repository.RuleRepository
	logger    *zap.Logger
}

func NewAdminService(
	templates repository.TemplateRepository,
	rules repository.RuleRepository,
	logger *zap.Logger,
) (*AdminService, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("rule repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AdminService{
		templates: templates,
		rules:     rules,
		logger:    logger,
	}, nil
}

func (s *AdminService) CreateTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}

	t.ID = strings.TrimSpace(t.ID)
	t.Subject = strings.TrimSpace(t.Subject)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.templates.Create(ctx, t); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: template %q already exists", domain.ErrConflict, t.ID)
		}
		return nil, err
	}

	s.logger.Info("template created", zap.String("templateId", t.ID))
	return t, nil
}

func (s *AdminService) UpdateTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}

	t.ID = strings.TrimSpace(t.ID)
	t.Subject = strings.TrimSpace(t.Subject)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.templates.Update(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("template updated", zap.String("templateId", t.ID))
	return t, nil
}

func (s *AdminService) DeleteTemplate(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}
	return s.templates.Delete(ctx, strings.TrimSpace(id))
}

func (s *AdminService) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}
	return s.templates.GetByID(ctx, strings.TrimSpace(id))
}

func (s *AdminService) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	return s.templates.List(ctx)
}

func (s *AdminService) CreateRule(ctx context.Context, rule *domain.DripRule) (*domain.DripRule, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", domain.ErrValidation)
	}

	rule.ID = strings.TrimSpace(rule.ID)
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.Name = strings.TrimSpace(rule.Name)
	rule.TemplateID = strings.TrimSpace(rule.TemplateID)

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkTemplateExists(ctx, rule.TemplateID); err != nil {
		return nil, err
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("rule created",
		zap.String("ruleId", rule.ID),
		zap.String("eventType", string(rule.EventType)),
		zap.String("templateId", rule.TemplateID),
	)
	return rule, nil
}

func (s *AdminService) UpdateRule(ctx context.Context, rule *domain.DripRule) (*domain.DripRule, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", domain.ErrValidation)
	}

	rule.ID = strings.TrimSpace(rule.ID)
	if rule.ID == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	rule.Name = strings.TrimSpace(rule.Name)
	rule.TemplateID = strings.TrimSpace(rule.TemplateID)

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkTemplateExists(ctx, rule.TemplateID); err != nil {
		return nil, err
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("rule updated", zap.String("ruleId", rule.ID))
	return rule, nil
}

func (s *AdminService) DeleteRule(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	return s.rules.Delete(ctx, strings.TrimSpace(id))
}

func (s *AdminService) GetRule(ctx context.Context, id string) (*domain.DripRule, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	return s.rules.GetByID(ctx, strings.TrimSpace(id))
}

func (s *AdminService) ListRules(ctx context.Context) ([]domain.DripRule, error) {
	return s.rules.List(ctx)
}

func (s *AdminService) checkTemplateExists(ctx context.Context, templateID string) error {
	_, err := s.templates.GetByID(ctx, templateID)
	if errors.Is(err, domain.ErrTemplateNotFound) {
		return fmt.Errorf("%w: template %q does not exist", domain.ErrValidation, templateID)
	}
	return err
}
