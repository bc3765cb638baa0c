package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"dripmail/internal/domain"
	"dripmail/internal/queue"
)

func newTestScheduler(
	t *testing.T,
	events *fakeEventRepo,
	rules *fakeRuleRepo,
	templates *fakeTemplateRepo,
	sends *fakeSendRepo,
	audits *fakeAuditRepo,
	publisher *fakePublisher,
	lock *fakeLeaderLock,
) *Scheduler {
	t.Helper()

	s, err := NewScheduler(
		events,
		rules,
		templates,
		sends,
		audits,
		publisher,
		lock,
		SchedulerConfig{},
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	return s
}

func signupEvent(now time.Time) domain.Event {
	return domain.Event{
		ID:         "event-1",
		UserID:     "user-1",
		Type:       domain.EventSignup,
		Recipient:  "user@example.com",
		Payload:    map[string]string{"name": "Ada"},
		OccurredAt: now.Add(-time.Hour),
	}
}

func welcomeRule() domain.DripRule {
	return domain.DripRule{
		ID:         "rule-1",
		Name:       "welcome",
		EventType:  domain.EventSignup,
		TemplateID: "welcome_v1",
		Delay:      30 * time.Minute,
		Priority:   domain.PriorityHigh,
		Active:     true,
	}
}

func TestSchedulerRunPassCreatesAndPublishesDueSend(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()

	var gotSend *domain.PendingSend
	var gotMsg *queue.SendMessage

	events := &fakeEventRepo{
		listSinceFn: func(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
			wantSince := now.Add(-defaultSchedulerLookback)
			if !since.Equal(wantSince) {
				t.Fatalf("since = %v, want %v", since, wantSince)
			}
			return []domain.Event{signupEvent(now)}, nil
		},
	}
	rules := &fakeRuleRepo{
		listActiveByEventTypeFn: func(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error) {
			if eventType != domain.EventSignup {
				t.Fatalf("event type = %s, want SIGNUP", eventType)
			}
			return []domain.DripRule{welcomeRule()}, nil
		},
	}
	templates := &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			return &domain.Template{ID: id, Subject: "Welcome!", Body: "<p>Hi</p>", Active: true}, nil
		},
	}
	sends := &fakeSendRepo{
		createIfAbsentFn: func(ctx context.Context, s *domain.PendingSend) (bool, error) {
			gotSend = s
			return true, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.SendMessage) error {
			gotMsg = &msg
			return nil
		},
	}

	s := newTestScheduler(t, events, rules, templates, sends, &fakeAuditRepo{}, publisher, &fakeLeaderLock{})

	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() error = %v", err)
	}

	if gotSend == nil {
		t.Fatal("expected a pending send to be created")
	}
	if gotSend.UserID != "user-1" || gotSend.TemplateID != "welcome_v1" {
		t.Fatalf("send = %+v, want user-1/welcome_v1", gotSend)
	}
	if gotSend.EventID != "event-1" {
		t.Fatalf("event id = %q, want event-1", gotSend.EventID)
	}
	if gotSend.Status != domain.SendStatusPending {
		t.Fatalf("status = %s, want PENDING", gotSend.Status)
	}
	if gotSend.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("max attempts = %d, want %d", gotSend.MaxAttempts, defaultMaxAttempts)
	}
	wantDue := signupEvent(now).OccurredAt.Add(30 * time.Minute)
	if !gotSend.ScheduledFor.Equal(wantDue) {
		t.Fatalf("scheduledFor = %v, want %v", gotSend.ScheduledFor, wantDue)
	}
	if gotMsg == nil {
		t.Fatal("due send should be published immediately")
	}
	if gotMsg.SendID != gotSend.ID || gotMsg.Priority != domain.PriorityHigh {
		t.Fatalf("message = %+v, want send id %s with HIGH priority", gotMsg, gotSend.ID)
	}
}

func TestSchedulerRunPassDefersFutureSend(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()

	published := false

	event := signupEvent(now)
	event.OccurredAt = now.Add(-time.Minute)

	rule := welcomeRule()
	rule.Delay = 24 * time.Hour

	events := &fakeEventRepo{
		listSinceFn: func(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
			return []domain.Event{event}, nil
		},
	}
	rules := &fakeRuleRepo{
		listActiveByEventTypeFn: func(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error) {
			return []domain.DripRule{rule}, nil
		},
	}
	templates := &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			return &domain.Template{ID: id, Subject: "Welcome!", Body: "<p>Hi</p>", Active: true}, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.SendMessage) error {
			published = true
			return nil
		},
	}

	s := newTestScheduler(t, events, rules, templates, &fakeSendRepo{}, &fakeAuditRepo{}, publisher, &fakeLeaderLock{})

	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() error = %v", err)
	}
	if published {
		t.Fatal("future send should not be published before it is due")
	}
}

func TestSchedulerRunPassRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()

	published := false

	events := &fakeEventRepo{
		listSinceFn: func(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
			return []domain.Event{signupEvent(now)}, nil
		},
	}
	rules := &fakeRuleRepo{
		listActiveByEventTypeFn: func(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error) {
			return []domain.DripRule{welcomeRule()}, nil
		},
	}
	templates := &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			return &domain.Template{ID: id, Subject: "Welcome!", Body: "<p>Hi</p>", Active: true}, nil
		},
	}
	sends := &fakeSendRepo{
		createIfAbsentFn: func(ctx context.Context, s *domain.PendingSend) (bool, error) {
			return false, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.SendMessage) error {
			published = true
			return nil
		},
	}

	s := newTestScheduler(t, events, rules, templates, sends, &fakeAuditRepo{}, publisher, &fakeLeaderLock{})

	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() error = %v", err)
	}
	if published {
		t.Fatal("existing pending send should not be re-published by scheduling")
	}
}

func TestSchedulerRunPassDoesNotRescheduleDeliveredEvent(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	lastAttempt := now.Add(-2 * time.Minute)

	// The earlier send went terminal, so no PENDING row guards the pair, and
	// a zero cooldown would not block either. The (event, rule) record is the
	// only thing standing between the lookback and a duplicate email.
	seen := map[string]bool{}
	publishCount := 0

	events := &fakeEventRepo{
		listSinceFn: func(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
			return []domain.Event{signupEvent(now)}, nil
		},
	}
	rules := &fakeRuleRepo{
		listActiveByEventTypeFn: func(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error) {
			return []domain.DripRule{welcomeRule()}, nil
		},
	}
	templates := &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			return &domain.Template{ID: id, Subject: "Welcome!", Body: "<p>Hi</p>", Active: true}, nil
		},
	}
	sends := &fakeSendRepo{
		createIfAbsentFn: func(ctx context.Context, s *domain.PendingSend) (bool, error) {
			key := s.EventID + "/" + s.RuleID
			if seen[key] {
				return false, nil
			}
			seen[key] = true
			return true, nil
		},
	}
	audits := &fakeAuditRepo{
		lastAttemptAtFn: func(ctx context.Context, userID string, templateID string) (*time.Time, error) {
			return &lastAttempt, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.SendMessage) error {
			publishCount++
			return nil
		},
	}

	s := newTestScheduler(t, events, rules, templates, sends, audits, publisher, &fakeLeaderLock{})

	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() error = %v", err)
	}
	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() second error = %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("created sends = %d, want exactly 1 for the event and rule", len(seen))
	}
	if publishCount != 1 {
		t.Fatalf("publish count = %d, want 1", publishCount)
	}
}

func TestSchedulerRunPassSkipsInCooldown(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	recentAttempt := now.Add(-time.Hour)

	createCalled := false

	rule := welcomeRule()
	rule.Cooldown = 24 * time.Hour

	events := &fakeEventRepo{
		listSinceFn: func(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
			return []domain.Event{signupEvent(now)}, nil
		},
	}
	rules := &fakeRuleRepo{
		listActiveByEventTypeFn: func(ctx context.Context, eventType domain.EventType) ([]domain.DripRule, error) {
			return []domain.DripRule{rule}, nil
		},
	}
	templates := &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			return &domain.Template{ID: id, Subject: "Welcome!", Body: "<p>Hi</p>", Active: true}, nil
		},
	}
	sends := &fakeSendRepo{
		createIfAbsentFn: func(ctx context.Context, s *domain.PendingSend) (bool, error) {
			createCalled = true
			return true, nil
		},
	}
	audits := &fakeAuditRepo{
		lastAttemptAtFn: func(ctx context.Context, userID string, templateID string) (*time.Time, error) {
			return &recentAttempt, nil
		},
	}

	s := newTestScheduler(t, events, rules, templates, sends, audits, &fakePublisher{}, &fakeLeaderLock{})

	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() error = %v", err)
	}
	if createCalled {
		t.Fatal("send should not be created while in cooldown")
	}
}

func TestSchedulerRunPassSkipsWhenLockHeldElsewhere(t *testing.T) {
	t.Parallel()

	listCalled := false

	events := &fakeEventRepo{
		listSinceFn: func(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
			listCalled = true
			return nil, nil
		},
	}
	lock := &fakeLeaderLock{
		acquireFn: func(ctx context.Context) (string, bool, error) {
			return "", false, nil
		},
	}

	s := newTestScheduler(t, events, &fakeRuleRepo{}, &fakeTemplateRepo{}, &fakeSendRepo{}, &fakeAuditRepo{}, &fakePublisher{}, lock)

	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() error = %v", err)
	}
	if listCalled {
		t.Fatal("pass should not run while another instance holds the lock")
	}
}

func TestSchedulerRunPassReleasesLock(t *testing.T) {
	t.Parallel()

	var releasedToken string

	lock := &fakeLeaderLock{
		acquireFn: func(ctx context.Context) (string, bool, error) {
			return "token-42", true, nil
		},
		releaseFn: func(ctx context.Context, token string) error {
			releasedToken = token
			return nil
		},
	}

	s := newTestScheduler(t, &fakeEventRepo{}, &fakeRuleRepo{}, &fakeTemplateRepo{}, &fakeSendRepo{}, &fakeAuditRepo{}, &fakePublisher{}, lock)

	if err := s.runPass(context.Background()); err != nil {
		t.Fatalf("runPass() error = %v", err)
	}
	if releasedToken != "token-42" {
		t.Fatalf("released token = %q, want token-42", releasedToken)
	}
}
