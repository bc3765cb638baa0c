package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"dripmail/internal/domain"
	"dripmail/internal/repository"
	"dripmail/internal/service"
)

type SendQueryService interface {
	GetSend(ctx context.Context, id string) (*service.SendDetail, error)
	SuppressSend(ctx context.Context, id string) (*service.SendDetail, error)
	ListSends(ctx context.Context, params repository.SendListParams) ([]domain.PendingSend, error)
	ListAudits(ctx context.Context, params repository.AuditListParams) ([]domain.AuditRecord, error)
	Stats(ctx context.Context) ([]service.TemplateStats, error)
}

type SendHandler struct {
	service SendQueryService
}

func NewSendHandler(service SendQueryService) (*SendHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("send query service is required")
	}
	return &SendHandler{service: service}, nil
}

func RegisterSendRoutes(router fiber.Router, service SendQueryService) error {
	h, err := NewSendHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/sends", h.ListSends)
	v1.Get("/sends/:id", h.GetSend)
	v1.Get("/sends/:id/audit", h.GetSendAudit)
	v1.Post("/sends/:id/suppress", h.SuppressSend)
	v1.Get("/audits", h.ListAudits)
	v1.Get("/stats", h.GetStats)

	return nil
}

type sendResponse struct {
	ID                string            `json:"id"`
	EventID           string            `json:"eventId"`
	UserID            string            `json:"userId"`
	RuleID            string            `json:"ruleId"`
	TemplateID        string            `json:"templateId"`
	Recipient         string            `json:"recipient"`
	Variables         map[string]string `json:"variables,omitempty"`
	Priority          string            `json:"priority"`
	Status            string            `json:"status"`
	ScheduledFor      time.Time         `json:"scheduledFor"`
	AttemptCount      int               `json:"attemptCount"`
	MaxAttempts       int               `json:"maxAttempts"`
	NextAttemptAt     *time.Time        `json:"nextAttemptAt,omitempty"`
	ProviderMessageID *string           `json:"providerMessageId,omitempty"`
	CreatedAt         time.Time         `json:"createdAt,omitempty"`
	UpdatedAt         time.Time         `json:"updatedAt,omitempty"`
}

type auditResponse struct {
	ID                string    `json:"id"`
	SendID            string    `json:"sendId"`
	AttemptNumber     int       `json:"attemptNumber"`
	Outcome           string    `json:"outcome"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	ErrorDetail       *string   `json:"errorDetail,omitempty"`
	AttemptedAt       time.Time `json:"attemptedAt"`
}

type sendDetailResponse struct {
	Send    sendResponse    `json:"send"`
	History []auditResponse `json:"history"`
}

type templateStatsResponse struct {
	TemplateID string         `json:"templateId"`
	Counts     map[string]int `json:"counts"`
}

func (h *SendHandler) GetSend(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	detail, err := h.service.GetSend(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	history := make([]auditResponse, 0, len(detail.History))
	for i := range detail.History {
		history = append(history, toAuditResponse(&detail.History[i]))
	}

	return c.Status(fiber.StatusOK).JSON(sendDetailResponse{
		Send:    toSendResponse(&detail.Send),
		History: history,
	})
}

func (h *SendHandler) GetSendAudit(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	detail, err := h.service.GetSend(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	history := make([]auditResponse, 0, len(detail.History))
	for i := range detail.History {
		history = append(history, toAuditResponse(&detail.History[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": history})
}

func (h *SendHandler) SuppressSend(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	detail, err := h.service.SuppressSend(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	history := make([]auditResponse, 0, len(detail.History))
	for i := range detail.History {
		history = append(history, toAuditResponse(&detail.History[i]))
	}

	return c.Status(fiber.StatusOK).JSON(sendDetailResponse{
		Send:    toSendResponse(&detail.Send),
		History: history,
	})
}

func (h *SendHandler) ListSends(c *fiber.Ctx) error {
	limit, err := parseLimitQuery(c)
	if err != nil {
		return toHTTPError(err)
	}

	params := repository.SendListParams{
		UserID:     strings.TrimSpace(c.Query("userId")),
		TemplateID: strings.TrimSpace(c.Query("templateId")),
		Limit:      limit,
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseSendStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	before, err := parseRFC3339Query(c.Query("before"), "before")
	if err != nil {
		return toHTTPError(err)
	}
	params.Before = before

	sends, err := h.service.ListSends(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]sendResponse, 0, len(sends))
	for i := range sends {
		responses = append(responses, toSendResponse(&sends[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *SendHandler) ListAudits(c *fiber.Ctx) error {
	limit, err := parseLimitQuery(c)
	if err != nil {
		return toHTTPError(err)
	}

	params := repository.AuditListParams{Limit: limit}

	if rawOutcome := strings.TrimSpace(c.Query("outcome")); rawOutcome != "" {
		outcome, err := domain.ParseOutcomeFromString(rawOutcome)
		if err != nil {
			return toHTTPError(err)
		}
		params.Outcome = &outcome
	}

	before, err := parseRFC3339Query(c.Query("before"), "before")
	if err != nil {
		return toHTTPError(err)
	}
	params.Before = before

	records, err := h.service.ListAudits(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]auditResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toAuditResponse(&records[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *SendHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]templateStatsResponse, 0, len(stats))
	for _, item := range stats {
		counts := make(map[string]int, len(item.Counts))
		for status, count := range item.Counts {
			counts[status.String()] = count
		}
		responses = append(responses, templateStatsResponse{
			TemplateID: item.TemplateID,
			Counts:     counts,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func toSendResponse(s *domain.PendingSend) sendResponse {
	if s == nil {
		return sendResponse{}
	}

	return sendResponse{
		ID:                s.ID,
		EventID:           s.EventID,
		UserID:            s.UserID,
		RuleID:            s.RuleID,
		TemplateID:        s.TemplateID,
		Recipient:         s.Recipient,
		Variables:         s.Variables,
		Priority:          s.Priority.String(),
		Status:            s.Status.String(),
		ScheduledFor:      s.ScheduledFor,
		AttemptCount:      s.AttemptCount,
		MaxAttempts:       s.MaxAttempts,
		NextAttemptAt:     s.NextAttemptAt,
		ProviderMessageID: s.ProviderMessageID,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toAuditResponse(a *domain.AuditRecord) auditResponse {
	if a == nil {
		return auditResponse{}
	}

	return auditResponse{
		ID:                a.ID,
		SendID:            a.SendID,
		AttemptNumber:     a.AttemptNumber,
		Outcome:           a.Outcome.String(),
		ProviderMessageID: a.ProviderMessageID,
		ErrorDetail:       a.ErrorDetail,
		AttemptedAt:       a.AttemptedAt,
	}
}
