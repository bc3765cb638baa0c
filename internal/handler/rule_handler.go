package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"dripmail/internal/domain"
)

type RuleService interface {
	CreateRule(ctx context.Context, rule *domain.DripRule) (*domain.DripRule, error)
	UpdateRule(ctx context.Context, rule *domain.DripRule) (*domain.DripRule, error)
	DeleteRule(ctx context.Context, id string) error
	GetRule(ctx context.Context, id string) (*domain.DripRule, error)
	ListRules(ctx context.Context) ([]domain.DripRule, error)
}

type RuleHandler struct {
	service RuleService
}

func NewRuleHandler(service RuleService) (*RuleHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("rule service is required")
	}
	return &RuleHandler{service: service}, nil
}

func RegisterRuleRoutes(router fiber.Router, service RuleService) error {
	h, err := NewRuleHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/rules", h.CreateRule)
	v1.Get("/rules", h.ListRules)
	v1.Get("/rules/:id", h.GetRule)
	v1.Put("/rules/:id", h.UpdateRule)
	v1.Delete("/rules/:id", h.DeleteRule)

	return nil
}

type ruleConditionPayload struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
}

type ruleRequest struct {
	Name            string                 `json:"name"`
	EventType       string                 `json:"eventType"`
	TemplateID      string                 `json:"templateId"`
	DelaySeconds    int64                  `json:"delaySeconds"`
	CooldownSeconds int64                  `json:"cooldownSeconds"`
	Conditions      []ruleConditionPayload `json:"conditions"`
	Priority        string                 `json:"priority"`
	StartAt         *time.Time             `json:"startAt"`
	EndAt           *time.Time             `json:"endAt"`
	Active          *bool                  `json:"active"`
}

type ruleResponse struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	EventType       string                 `json:"eventType"`
	TemplateID      string                 `json:"templateId"`
	DelaySeconds    int64                  `json:"delaySeconds"`
	CooldownSeconds int64                  `json:"cooldownSeconds"`
	Conditions      []ruleConditionPayload `json:"conditions,omitempty"`
	Priority        string                 `json:"priority"`
	StartAt         *time.Time             `json:"startAt,omitempty"`
	EndAt           *time.Time             `json:"endAt,omitempty"`
	Active          bool                   `json:"active"`
	CreatedAt       time.Time              `json:"createdAt,omitempty"`
	UpdatedAt       time.Time              `json:"updatedAt,omitempty"`
}

func (h *RuleHandler) CreateRule(c *fiber.Ctx) error {
	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	rule, err := requestToRule(req, "")
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.CreateRule(c.Context(), &rule)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toRuleResponse(created))
}

func (h *RuleHandler) UpdateRule(c *fiber.Ctx) error {
	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	rule, err := requestToRule(req, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.UpdateRule(c.Context(), &rule)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRuleResponse(updated))
}

func (h *RuleHandler) DeleteRule(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.DeleteRule(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RuleHandler) GetRule(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	rule, err := h.service.GetRule(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRuleResponse(rule))
}

func (h *RuleHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.service.ListRules(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]ruleResponse, 0, len(rules))
	for i := range rules {
		responses = append(responses, toRuleResponse(&rules[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func requestToRule(req ruleRequest, id string) (domain.DripRule, error) {
	priority, err := domain.ParsePriorityFromString(req.Priority)
	if err != nil {
		return domain.DripRule{}, err
	}

	eventType, err := domain.ParseEventTypeFromString(req.EventType)
	if err != nil {
		return domain.DripRule{}, err
	}

	var conditions []domain.RuleCondition
	for _, c := range req.Conditions {
		operator, err := domain.ParseConditionOperatorFromString(c.Operator)
		if err != nil {
			return domain.DripRule{}, err
		}
		conditions = append(conditions, domain.RuleCondition{
			Field:    strings.TrimSpace(c.Field),
			Operator: operator,
			Value:    c.Value,
		})
	}

	rule := domain.DripRule{
		ID:         id,
		Name:       strings.TrimSpace(req.Name),
		EventType:  eventType,
		TemplateID: strings.TrimSpace(req.TemplateID),
		Delay:      time.Duration(req.DelaySeconds) * time.Second,
		Cooldown:   time.Duration(req.CooldownSeconds) * time.Second,
		Conditions: conditions,
		Priority:   priority,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Active:     true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	return rule, nil
}

func toRuleResponse(r *domain.DripRule) ruleResponse {
	if r == nil {
		return ruleResponse{}
	}

	var conditions []ruleConditionPayload
	for _, c := range r.Conditions {
		conditions = append(conditions, ruleConditionPayload{
			Field:    c.Field,
			Operator: c.Operator.String(),
			Value:    c.Value,
		})
	}

	return ruleResponse{
		ID:              r.ID,
		Name:            r.Name,
		EventType:       r.EventType.String(),
		TemplateID:      r.TemplateID,
		DelaySeconds:    int64(r.Delay / time.Second),
		CooldownSeconds: int64(r.Cooldown / time.Second),
		Conditions:      conditions,
		Priority:        r.Priority.String(),
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
