package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dripmail/internal/domain"
	"dripmail/internal/repository"
)

const maxEventListLimit = 100

// EventService ingests lifecycle events. Events are immutable once recorded;
// the scheduler picks them up on its next pass.
type EventService struct {
	events repository.EventRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewEventService(events repository.EventRepository, logger *zap.Logger) (*EventService, error) {
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventService{
		events: events,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *EventService) Record(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event is required", domain.ErrValidation)
	}

	event.ID = strings.TrimSpace(event.ID)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.UserID = strings.TrimSpace(event.UserID)
	event.Recipient = strings.TrimSpace(event.Recipient)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record event: %w", err)
	}

	s.logger.Info("event recorded",
		zap.String("eventId", event.ID),
		zap.String("userId", event.UserID),
		zap.String("type", string(event.Type)),
	)

	return event, nil
}

func (s *EventService) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: event id is required", domain.ErrValidation)
	}
	return s.events.GetByID(ctx, strings.TrimSpace(id))
}

func (s *EventService) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}
	if limit < 1 || limit > maxEventListLimit {
		limit = maxEventListLimit
	}
	return s.events.ListByUser(ctx, strings.TrimSpace(userID), limit)
}
