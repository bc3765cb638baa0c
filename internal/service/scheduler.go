package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dripmail/internal/domain"
	"dripmail/internal/observability"
	"dripmail/internal/queue"
	"dripmail/internal/repository"
)

const (
	defaultSchedulerInterval = time.Minute
	defaultSchedulerLookback = 72 * time.Hour
	defaultSchedulerLimit    = 500
	defaultMaxAttempts       = 3
)

// LeaderLock serializes scheduler passes across instances. Acquire returns a
// fencing token that must be handed back to Release.
type LeaderLock interface {
	Acquire(ctx context.Context) (string, bool, error)
	Release(ctx context.Context, token string) error
}

// Scheduler periodically matches recent events against drip rules and creates
// pending sends. Passes are idempotent: the storage layer refuses a second
// pending send for the same user and template, and refuses a second send for
// the same event and rule even after the first one went terminal, so repeated
// lookback passes cannot double-schedule.
type Scheduler struct {
	events      repository.EventRepository
	rules       repository.RuleRepository
	templates   repository.TemplateRepository
	sends       repository.SendRepository
	audits      repository.AuditRepository
	publisher   queue.Publisher
	lock        LeaderLock
	logger      *zap.Logger
	metrics     *observability.Metrics
	interval    time.Duration
	lookback    time.Duration
	limit       int
	maxAttempts int
	now         func() time.Time
}

type SchedulerConfig struct {
	Interval    time.Duration
	Lookback    time.Duration
	ScanLimit   int
	MaxAttempts int
}

func NewScheduler(
	events repository.EventRepository,
	rules repository.RuleRepository,
	templates repository.TemplateRepository,
	sends repository.SendRepository,
	audits repository.AuditRepository,
	publisher queue.Publisher,
	lock LeaderLock,
	cfg SchedulerConfig,
	logger *zap.Logger,
) (*Scheduler, error) {
	if events == nil || rules == nil || templates == nil || sends == nil || audits == nil {
		return nil, fmt.Errorf("scheduler repositories are required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if lock == nil {
		return nil, fmt.Errorf("leader lock is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSchedulerInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultSchedulerLookback
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = defaultSchedulerLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		events:      events,
		rules:       rules,
		templates:   templates,
		sends:       sends,
		audits:      audits,
		publisher:   publisher,
		lock:        lock,
		logger:      logger,
		interval:    cfg.Interval,
		lookback:    cfg.Lookback,
		limit:       cfg.ScanLimit,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}, nil
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.runPass(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.runPass(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("scheduler pass failed", zap.Error(err))
			}
		}
	}
}

// runPass takes the leader lock, evaluates the lookback window and releases
// the lock. Losing the lock race is not an error; another instance is doing
// the same work.
func (s *Scheduler) runPass(ctx context.Context) error {
	token, acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire scheduler lock: %w", err)
	}
	if !acquired {
		s.logger.Debug("scheduler lock held elsewhere, skipping pass")
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx, token); err != nil {
			s.logger.Warn("failed to release scheduler lock", zap.Error(err))
		}
	}()

	if s.metrics != nil {
		s.metrics.IncSchedulerRun()
	}

	return s.evaluateWindow(ctx)
}

func (s *Scheduler) evaluateWindow(ctx context.Context) error {
	now := s.now().UTC()

	events, err := s.events.ListSince(ctx, now.Add(-s.lookback), s.limit)
	if err != nil {
		return fmt.Errorf("failed to list events in lookback window: %w", err)
	}

	for i := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.evaluateEvent(ctx, &events[i], now); err != nil {
			s.logger.Error("failed to evaluate event",
				zap.String("eventId", events[i].ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *Scheduler) evaluateEvent(ctx context.Context, event *domain.Event, now time.Time) error {
	rules, err := s.rules.ListActiveByEventType(ctx, event.Type)
	if err != nil {
		return fmt.Errorf("failed to list rules for event type %s: %w", event.Type, err)
	}

	for i := range rules {
		rule := rules[i]

		tmpl, err := s.templates.GetByID(ctx, rule.TemplateID)
		if err != nil && !errors.Is(err, domain.ErrTemplateNotFound) {
			return fmt.Errorf("failed to load template %s: %w", rule.TemplateID, err)
		}

		lastAttempt, err := s.audits.LastAttemptAt(ctx, event.UserID, rule.TemplateID)
		if err != nil {
			return fmt.Errorf("failed to load last attempt: %w", err)
		}

		scheduledFor, skip := EvaluateEligibility(EligibilityInput{
			Rule:          rule,
			Template:      tmpl,
			EventAt:       event.OccurredAt,
			Payload:       event.Payload,
			LastAttemptAt: lastAttempt,
			Now:           now,
		})
		if skip != SkipNone {
			s.logger.Debug("rule skipped for event",
				zap.String("eventId", event.ID),
				zap.String("ruleId", rule.ID),
				zap.String("reason", string(skip)),
			)
			continue
		}

		send := &domain.PendingSend{
			ID:           uuid.NewString(),
			EventID:      event.ID,
			UserID:       event.UserID,
			RuleID:       rule.ID,
			TemplateID:   rule.TemplateID,
			Recipient:    event.Recipient,
			Variables:    event.Payload,
			Priority:     rule.Priority,
			Status:       domain.SendStatusPending,
			ScheduledFor: scheduledFor,
			MaxAttempts:  s.maxAttempts,
		}

		created, err := s.sends.CreateIfAbsent(ctx, send)
		if err != nil {
			return fmt.Errorf("failed to create pending send: %w", err)
		}
		if !created {
			// A non-terminal send for this user and template already exists,
			// or this event and rule already produced a send that has since
			// gone terminal.
			continue
		}

		if s.metrics != nil {
			s.metrics.IncSendCreated(send.TemplateID)
		}
		s.logger.Info("pending send created",
			zap.String("sendId", send.ID),
			zap.String("userId", send.UserID),
			zap.String("templateId", send.TemplateID),
			zap.Time("scheduledFor", send.ScheduledFor),
		)

		if send.ScheduledFor.After(now) {
			// Not yet due; the requeue scanner publishes it when its time comes.
			continue
		}

		msg := queue.SendMessage{
			SendID:     send.ID,
			UserID:     send.UserID,
			TemplateID: send.TemplateID,
			Priority:   send.Priority,
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.logger.Error("failed to publish due send",
				zap.String("sendId", send.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}
