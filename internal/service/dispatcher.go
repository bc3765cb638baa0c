package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dripmail/internal/domain"
	"dripmail/internal/observability"
	"dripmail/internal/provider"
	"dripmail/internal/queue"
	"dripmail/internal/ratelimit"
	"dripmail/internal/repository"
	"dripmail/internal/template"
)

const (
	minDispatcherConcurrency = 1
	defaultProviderTimeout   = 10 * time.Second
	defaultRetryBaseDelay    = 30 * time.Second
	defaultRetryMaxDelay     = time.Hour
	maxRetryJitterMillis     = 250
)

// Dispatcher consumes send messages and delivers emails. Each message claims
// its pending send before any work happens, so duplicate deliveries of the
// same message collapse into one attempt.
type Dispatcher struct {
	sends       repository.SendRepository
	templates   repository.TemplateRepository
	audits      repository.AuditRepository
	registry    *template.Registry
	consumer    queue.Consumer
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics

	concurrency     int
	providerTimeout time.Duration
	retryBaseDelay  time.Duration
	retryMaxDelay   time.Duration

	now      func() time.Time
	randIntn func(n int) int
}

type DispatcherConfig struct {
	Concurrency     int
	ProviderTimeout time.Duration
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
}

func NewDispatcher(
	sends repository.SendRepository,
	templates repository.TemplateRepository,
	audits repository.AuditRepository,
	registry *template.Registry,
	consumer queue.Consumer,
	emailProvider provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	cfg DispatcherConfig,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if sends == nil || templates == nil || audits == nil {
		return nil, fmt.Errorf("dispatcher repositories are required")
	}
	if registry == nil {
		return nil, fmt.Errorf("template registry is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if emailProvider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.Concurrency < minDispatcherConcurrency {
		cfg.Concurrency = minDispatcherConcurrency
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = defaultRetryMaxDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		sends:           sends,
		templates:       templates,
		audits:          audits,
		registry:        registry,
		consumer:        consumer,
		provider:        emailProvider,
		rateLimiter:     rateLimiter,
		logger:          logger,
		concurrency:     cfg.Concurrency,
		providerTimeout: cfg.ProviderTimeout,
		retryBaseDelay:  cfg.RetryBaseDelay,
		retryMaxDelay:   cfg.RetryMaxDelay,
		now:             time.Now,
		randIntn:        rand.Intn,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Start runs concurrent consumers on the work queue until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			d.logger.Info("dispatcher worker started", zap.Int("workerId", workerID))

			err := d.consumer.Consume(groupCtx, d.processMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("dispatcher worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			d.logger.Info("dispatcher worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (d *Dispatcher) processMessage(ctx context.Context, msg queue.SendMessage) error {
	send, err := d.sends.ClaimForDispatch(ctx, msg.SendID, d.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			d.logger.Warn("send not found during claim, skipping",
				zap.String("sendId", msg.SendID),
			)
			return nil
		}
		return fmt.Errorf("failed to claim send: %w", err)
	}

	// Nil means not yet due or leased by another worker; ack and let the
	// requeue scanner bring it back.
	if send == nil {
		return nil
	}

	// Already terminal; nothing left to do for this message.
	if send.Status != domain.SendStatusPending {
		return nil
	}

	if d.metrics != nil {
		d.metrics.IncDispatchInFlight()
		defer d.metrics.DecDispatchInFlight()
	}

	ctx = observability.WithSendID(ctx, send.ID)

	tmpl, err := d.templates.GetByID(ctx, send.TemplateID)
	if err != nil && !errors.Is(err, domain.ErrTemplateNotFound) {
		return fmt.Errorf("failed to load template: %w", err)
	}
	if tmpl == nil || !tmpl.Active {
		return d.suppress(ctx, send, "template inactive or removed")
	}

	rendered, err := d.registry.Render(ctx, send.TemplateID, send.Variables)
	if err != nil {
		if errors.Is(err, domain.ErrRender) {
			return d.failRender(ctx, send, err)
		}
		return fmt.Errorf("failed to render template: %w", err)
	}

	if err := d.rateLimiter.Wait(ctx, send.TemplateID); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.providerTimeout)
	sendStart := d.now()
	result, sendErr := d.provider.Send(sendCtx, provider.EmailMessage{
		To:         send.Recipient,
		Subject:    rendered.Subject,
		HTML:       rendered.Body,
		TemplateID: send.TemplateID,
	})
	cancel()
	if d.metrics != nil {
		d.metrics.ObserveSendDuration(send.TemplateID, d.now().Sub(sendStart))
	}

	isTransient := provider.IsTransient(sendErr)
	if err := d.recordAttempt(ctx, send, result, sendErr, isTransient); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if sendErr == nil {
		messageID := ""
		if result != nil {
			messageID = strings.TrimSpace(result.MessageID)
		}
		if err := d.sends.MarkSent(ctx, send.ID, messageID); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				d.logger.Warn("send already transitioned before sent mark",
					zap.String("sendId", send.ID),
				)
				return nil
			}
			return fmt.Errorf("failed to mark send as sent: %w", err)
		}
		if d.metrics != nil {
			d.metrics.IncEmailSent(send.TemplateID)
		}
		return nil
	}

	maxAttempts := send.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	if isTransient && send.AttemptCount < maxAttempts {
		nextAttemptAt := d.now().UTC().Add(d.computeRetryDelay(send.AttemptCount))
		if err := d.sends.UpdateForRetry(ctx, send.ID, nextAttemptAt); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		if d.metrics != nil {
			d.metrics.IncRetryScheduled(send.TemplateID)
		}
		return nil
	}

	if err := d.sends.MarkFailed(ctx, send.ID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the race to an operator suppression or a concurrent
			// transition; the record is already terminal.
			d.logger.Warn("send already transitioned before failed mark",
				zap.String("sendId", send.ID),
			)
			return nil
		}
		return fmt.Errorf("failed to mark send as failed: %w", err)
	}
	if d.metrics != nil {
		reason := "permanent_error"
		if isTransient {
			reason = "retry_exhausted"
		}
		d.metrics.IncEmailFailed(send.TemplateID, reason)
	}

	return nil
}

func (d *Dispatcher) suppress(ctx context.Context, send *domain.PendingSend, detail string) error {
	if err := d.sends.Suppress(ctx, send.ID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return fmt.Errorf("failed to suppress send: %w", err)
	}

	record := &domain.AuditRecord{
		ID:            uuid.NewString(),
		SendID:        send.ID,
		AttemptNumber: send.AttemptCount,
		Outcome:       domain.OutcomeSuppressed,
		ErrorDetail:   &detail,
		AttemptedAt:   d.now().UTC(),
	}
	if err := d.audits.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record suppression: %w", err)
	}

	if d.metrics != nil {
		d.metrics.IncEmailFailed(send.TemplateID, "suppressed")
	}
	d.logger.Info("send suppressed",
		zap.String("sendId", send.ID),
		zap.String("detail", detail),
	)

	return nil
}

// failRender marks a send failed without consuming a provider attempt slot.
// Render failures are deterministic, so retrying cannot help.
func (d *Dispatcher) failRender(ctx context.Context, send *domain.PendingSend, renderErr error) error {
	detail := renderErr.Error()
	record := &domain.AuditRecord{
		ID:            uuid.NewString(),
		SendID:        send.ID,
		AttemptNumber: send.AttemptCount,
		Outcome:       domain.OutcomeRenderError,
		ErrorDetail:   &detail,
		AttemptedAt:   d.now().UTC(),
	}
	if err := d.audits.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record render failure: %w", err)
	}

	if err := d.sends.MarkFailed(ctx, send.ID); err != nil && !errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("failed to mark send as failed: %w", err)
	}

	if d.metrics != nil {
		d.metrics.IncEmailFailed(send.TemplateID, "render_error")
	}

	return nil
}

func (d *Dispatcher) recordAttempt(
	ctx context.Context,
	send *domain.PendingSend,
	result *provider.SendResult,
	sendErr error,
	isTransient bool,
) error {
	record := &domain.AuditRecord{
		ID:            uuid.NewString(),
		SendID:        send.ID,
		AttemptNumber: send.AttemptCount,
		Outcome:       domain.OutcomeSuccess,
		AttemptedAt:   d.now().UTC(),
	}

	if result != nil && strings.TrimSpace(result.MessageID) != "" {
		messageID := result.MessageID
		record.ProviderMessageID = &messageID
	}

	if sendErr != nil {
		record.Outcome = domain.OutcomeFailurePermanent
		if isTransient {
			record.Outcome = domain.OutcomeFailureTransient
		}
		detail := sendErr.Error()
		record.ErrorDetail = &detail
	}

	return d.audits.Create(ctx, record)
}

func (d *Dispatcher) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := d.retryBaseDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= d.retryMaxDelay {
			delay = d.retryMaxDelay
			break
		}
	}
	if delay > d.retryMaxDelay {
		delay = d.retryMaxDelay
	}

	jitterMillis := 0
	if d.randIntn != nil {
		jitterMillis = d.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}
