package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dripmail/internal/queue"
	"dripmail/internal/repository"
)

const (
	defaultRequeueScanInterval = 15 * time.Second
	defaultRequeueScanLimit    = 200
)

// RequeueScanner periodically publishes pending sends whose due time or retry
// backoff has elapsed. Publishing the same send twice is harmless; the claim
// step deduplicates.
type RequeueScanner struct {
	sends     repository.SendRepository
	publisher queue.Publisher
	logger    *zap.Logger
	interval  time.Duration
	limit     int
	now       func() time.Time
}

func NewRequeueScanner(
	sends repository.SendRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RequeueScanner, error) {
	if sends == nil {
		return nil, fmt.Errorf("send repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRequeueScanInterval
	}
	if limit <= 0 {
		limit = defaultRequeueScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RequeueScanner{
		sends:     sends,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		limit:     limit,
		now:       time.Now,
	}, nil
}

func (s *RequeueScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Initial scan so already-due sends do not wait for the first ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("requeue scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("requeue scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *RequeueScanner) scanDue(ctx context.Context) error {
	dueSends, err := s.sends.GetDueForDispatch(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due sends: %w", err)
	}

	for i := range dueSends {
		send := dueSends[i]
		msg := queue.SendMessage{
			SendID:     send.ID,
			UserID:     send.UserID,
			TemplateID: send.TemplateID,
			Priority:   send.Priority,
		}

		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.logger.Error("failed to enqueue due send",
				zap.String("sendId", send.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
