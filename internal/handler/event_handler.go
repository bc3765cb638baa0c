package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"dripmail/internal/domain"
)

type EventService interface {
	Record(ctx context.Context, event *domain.Event) (*domain.Event, error)
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Event, error)
}

type EventHandler struct {
	service EventService
}

func NewEventHandler(service EventService) (*EventHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("event service is required")
	}
	return &EventHandler{service: service}, nil
}

func RegisterEventRoutes(router fiber.Router, service EventService) error {
	h, err := NewEventHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/events", h.RecordEvent)
	v1.Get("/events/:id", h.GetEvent)
	v1.Get("/users/:userId/events", h.ListUserEvents)

	return nil
}

type recordEventRequest struct {
	UserID     string            `json:"userId"`
	Type       string            `json:"type"`
	Recipient  string            `json:"recipient"`
	Payload    map[string]string `json:"payload"`
	OccurredAt *time.Time        `json:"occurredAt"`
}

type eventResponse struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Type       string            `json:"type"`
	Recipient  string            `json:"recipient"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	CreatedAt  time.Time         `json:"createdAt,omitempty"`
}

func (h *EventHandler) RecordEvent(c *fiber.Ctx) error {
	var req recordEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	eventType, err := domain.ParseEventTypeFromString(req.Type)
	if err != nil {
		return toHTTPError(err)
	}

	event := domain.Event{
		UserID:    strings.TrimSpace(req.UserID),
		Type:      eventType,
		Recipient: strings.TrimSpace(req.Recipient),
		Payload:   req.Payload,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.UTC()
	}

	recorded, err := h.service.Record(c.Context(), &event)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toEventResponse(recorded))
}

func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	event, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toEventResponse(event))
}

func (h *EventHandler) ListUserEvents(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	limit, err := parseLimitQuery(c)
	if err != nil {
		return toHTTPError(err)
	}

	events, err := h.service.ListByUser(c.Context(), userID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]eventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, toEventResponse(&events[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func toEventResponse(e *domain.Event) eventResponse {
	if e == nil {
		return eventResponse{}
	}

	return eventResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		Type:       e.Type.String(),
		Recipient:  e.Recipient,
		Payload:    e.Payload,
		OccurredAt: e.OccurredAt,
		CreatedAt:  e.CreatedAt,
	}
}
