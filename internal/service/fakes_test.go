package service

import (
	"context"
	"time"

	"dripmail/internal/domain"
	"dripmail/internal/provider"
	"dripmail/internal/queue"
	"dripmail/internal/ratelimit"
	"dripmail/internal/repository"
)

type fakeEventRepo struct {
	createFn     func(ctx context.Context, e *domain.Event) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Event, error)
	listSinceFn  func(ctx context.Context, since time.Time, limit int) ([]domain.Event, error)
	listByUserFn func(ctx context.Context, userID string, limit int) ([]domain.Event, error)
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	if f.createFn != nil {
		return f.createFn(ctx, e)
	}
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
	if f.listSinceFn != nil {
		return f.listSinceFn(ctx, since, limit)
	}
	return nil, nil
}

func (f *fakeEventRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	if f.listByUserFn != nil {
		return f.listByUserFn(ctx, userID, limit)
	}
	return nil, nil
}

var _ repository.EventRepository = (*fakeEventRepo)(nil)

type fakeTemplateRepo struct {
	createFn  func(ctx context.Context, t *domain.Template) error
	updateFn  func(ctx context.Context, t *domain.Template) error
	deleteFn  func(ctx context.Context, id string) error
	getByIDFn func(ctx context.Context, id string) (*domain.Template, error)
	listFn    func(ctx context.Context) ([]domain.Template, error)
}

func (f *fakeTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	if f.createFn != nil {
		return f.createFn(ctx, t)
	}
	return nil
}

func (f *fakeTemplateRepo) Update(ctx context.Context, t *domain.Template) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, t)
	}
	return nil
}

func (f *fakeTemplateRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeTemplateRepo) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrTemplateNotFound
}

func (f *fakeTemplateRepo) List(ctx context.Context) ([]domain.Template, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

var _ repository.TemplateRepository = (*fakeTemplateRepo)(nil)

type fakeRuleRepo struct {
	createFn                func(ctx context.Context, rule *domain.DripRule) error
	updateFn                func(ctx context.Context, rule *domain.DripRule) error
	deleteFn                func(ctx context.Context, id string) error
	getByIDFn               func(ctx context.Context, id string) (*domain.DripRule, error)
	listFn                  func(ctx context.Context) ([]domain.DripRule, error)
	listActiveByEventTypeFn func(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error)
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *domain.DripRule) error {
	if f.createFn != nil {
		return f.createFn(ctx, rule)
	}
	return nil
}

func (f *fakeRuleRepo) Update(ctx context.Context, rule *domain.DripRule) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, rule)
	}
	return nil
}

func (f *fakeRuleRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeRuleRepo) GetByID(ctx context.Context, id string) (*domain.DripRule, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRuleRepo) List(ctx context.Context) ([]domain.DripRule, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeRuleRepo) ListActiveByEventType(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error) {
	if f.listActiveByEventTypeFn != nil {
		return f.listActiveByEventTypeFn(ctx, eventType)
	}
	return nil, nil
}

var _ repository.RuleRepository = (*fakeRuleRepo)(nil)

type fakeSendRepo struct {
	createIfAbsentFn    func(ctx context.Context, s *domain.PendingSend) (bool, error)
	getByIDFn           func(ctx context.Context, id string) (*domain.PendingSend, error)
	listFn              func(ctx context.Context, params repository.SendListParams) ([]domain.PendingSend, error)
	getDueForDispatchFn func(ctx context.Context, now time.Time, limit int) ([]domain.PendingSend, error)
	claimForDispatchFn  func(ctx context.Context, id string, now time.Time) (*domain.PendingSend, error)
	markSentFn          func(ctx context.Context, id string, providerMessageID string) error
	markFailedFn        func(ctx context.Context, id string) error
	updateForRetryFn    func(ctx context.Context, id string, nextAttemptAt time.Time) error
	suppressFn          func(ctx context.Context, id string) error
	hasNonTerminalFn    func(ctx context.Context, userID string, templateID string) (bool, error)
	statusCountsFn      func(ctx context.Context) ([]repository.SendStatusCount, error)
}

func (f *fakeSendRepo) CreateIfAbsent(ctx context.Context, s *domain.PendingSend) (bool, error) {
	if f.createIfAbsentFn != nil {
		return f.createIfAbsentFn(ctx, s)
	}
	return true, nil
}

func (f *fakeSendRepo) GetByID(ctx context.Context, id string) (*domain.PendingSend, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSendRepo) List(ctx context.Context, params repository.SendListParams) ([]domain.PendingSend, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

func (f *fakeSendRepo) GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.PendingSend, error) {
	if f.getDueForDispatchFn != nil {
		return f.getDueForDispatchFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeSendRepo) ClaimForDispatch(ctx context.Context, id string, now time.Time) (*domain.PendingSend, error) {
	if f.claimForDispatchFn != nil {
		return f.claimForDispatchFn(ctx, id, now)
	}
	return nil, nil
}

func (f *fakeSendRepo) MarkSent(ctx context.Context, id string, providerMessageID string) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, providerMessageID)
	}
	return nil
}

func (f *fakeSendRepo) MarkFailed(ctx context.Context, id string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id)
	}
	return nil
}

func (f *fakeSendRepo) UpdateForRetry(ctx context.Context, id string, nextAttemptAt time.Time) error {
	if f.updateForRetryFn != nil {
		return f.updateForRetryFn(ctx, id, nextAttemptAt)
	}
	return nil
}

func (f *fakeSendRepo) Suppress(ctx context.Context, id string) error {
	if f.suppressFn != nil {
		return f.suppressFn(ctx, id)
	}
	return nil
}

func (f *fakeSendRepo) HasNonTerminal(ctx context.Context, userID string, templateID string) (bool, error) {
	if f.hasNonTerminalFn != nil {
		return f.hasNonTerminalFn(ctx, userID, templateID)
	}
	return false, nil
}

func (f *fakeSendRepo) StatusCounts(ctx context.Context) ([]repository.SendStatusCount, error) {
	if f.statusCountsFn != nil {
		return f.statusCountsFn(ctx)
	}
	return nil, nil
}

var _ repository.SendRepository = (*fakeSendRepo)(nil)

type fakeAuditRepo struct {
	createFn        func(ctx context.Context, a *domain.AuditRecord) error
	listBySendIDFn  func(ctx context.Context, sendID string) ([]domain.AuditRecord, error)
	listFn          func(ctx context.Context, params repository.AuditListParams) ([]domain.AuditRecord, error)
	lastAttemptAtFn func(ctx context.Context, userID string, templateID string) (*time.Time, error)
}

func (f *fakeAuditRepo) Create(ctx context.Context, a *domain.AuditRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAuditRepo) ListBySendID(ctx context.Context, sendID string) ([]domain.AuditRecord, error) {
	if f.listBySendIDFn != nil {
		return f.listBySendIDFn(ctx, sendID)
	}
	return nil, nil
}

func (f *fakeAuditRepo) List(ctx context.Context, params repository.AuditListParams) ([]domain.AuditRecord, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

func (f *fakeAuditRepo) LastAttemptAt(ctx context.Context, userID string, templateID string) (*time.Time, error) {
	if f.lastAttemptAtFn != nil {
		return f.lastAttemptAtFn(ctx, userID, templateID)
	}
	return nil, nil
}

var _ repository.AuditRepository = (*fakeAuditRepo)(nil)

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.SendMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.SendMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

var _ queue.Publisher = (*fakePublisher)(nil)

type fakeConsumer struct {
	consumeFn func(ctx context.Context, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

var _ queue.Consumer = (*fakeConsumer)(nil)

type fakeProvider struct {
	sendFn func(ctx context.Context, msg provider.EmailMessage) (*provider.SendResult, error)
}

func (f *fakeProvider) Send(ctx context.Context, msg provider.EmailMessage) (*provider.SendResult, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.SendResult{}, nil
}

var _ provider.Provider = (*fakeProvider)(nil)

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, templateID string) (bool, error)
	waitFn  func(ctx context.Context, templateID string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, templateID string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, templateID)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, templateID string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, templateID)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

type fakeLeaderLock struct {
	acquireFn func(ctx context.Context) (string, bool, error)
	releaseFn func(ctx context.Context, token string) error
}

func (f *fakeLeaderLock) Acquire(ctx context.Context) (string, bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx)
	}
	return "token", true, nil
}

func (f *fakeLeaderLock) Release(ctx context.Context, token string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, token)
	}
	return nil
}

var _ LeaderLock = (*fakeLeaderLock)(nil)
