package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"dripmail/internal/domain"
	"dripmail/internal/queue"
)

func TestRequeueScannerScanDuePublishes(t *testing.T) {
	t.Parallel()

	due := []domain.PendingSend{
		{
			ID:         "send-1",
			UserID:     "user-1",
			TemplateID: "welcome_v1",
			Priority:   domain.PriorityHigh,
			Status:     domain.SendStatusPending,
		},
		{
			ID:         "send-2",
			UserID:     "user-2",
			TemplateID: "winback_v2",
			Priority:   domain.PriorityLow,
			Status:     domain.SendStatusPending,
		},
	}

	var published []queue.SendMessage

	sends := &fakeSendRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.PendingSend, error) {
			return due, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.SendMessage) error {
			published = append(published, msg)
			return nil
		},
	}

	scanner, err := NewRequeueScanner(sends, publisher, time.Minute, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRequeueScanner() error = %v", err)
	}

	if err := scanner.scanDue(context.Background()); err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}

	if len(published) != 2 {
		t.Fatalf("published %d messages, want 2", len(published))
	}
	if published[0].SendID != "send-1" || published[1].SendID != "send-2" {
		t.Fatalf("published = %+v, want send-1 then send-2", published)
	}
	if published[0].Priority != domain.PriorityHigh {
		t.Fatalf("priority = %s, want HIGH", published[0].Priority)
	}
}

func TestRequeueScannerScanDueContinuesAfterPublishError(t *testing.T) {
	t.Parallel()

	due := []domain.PendingSend{
		{ID: "send-1", UserID: "user-1", TemplateID: "welcome_v1", Priority: domain.PriorityNormal},
		{ID: "send-2", UserID: "user-2", TemplateID: "welcome_v1", Priority: domain.PriorityNormal},
	}

	var published []string

	sends := &fakeSendRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.PendingSend, error) {
			return due, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.SendMessage) error {
			if msg.SendID == "send-1" {
				return errors.New("broker unavailable")
			}
			published = append(published, msg.SendID)
			return nil
		},
	}

	scanner, err := NewRequeueScanner(sends, publisher, time.Minute, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRequeueScanner() error = %v", err)
	}

	if err := scanner.scanDue(context.Background()); err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}
	if len(published) != 1 || published[0] != "send-2" {
		t.Fatalf("published = %v, want [send-2]", published)
	}
}
