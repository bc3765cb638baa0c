package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"dripmail/internal/domain"
)

func newTestAdminService(t *testing.T, templates *fakeTemplateRepo, rules *fakeRuleRepo) *AdminService {
	t.Helper()

	svc, err := NewAdminService(templates, rules, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAdminService() error = %v", err)
	}
	return svc
}

func TestAdminServiceCreateTemplate(t *testing.T) {
	t.Parallel()

	var created *domain.Template

	templates := &fakeTemplateRepo{
		createFn: func(ctx context.Context, tmpl *domain.Template) error {
			created = tmpl
			return nil
		},
	}

	svc := newTestAdminService(t, templates, &fakeRuleRepo{})

	tmpl, err := svc.CreateTemplate(context.Background(), &domain.Template{
		ID:      " welcome_v1 ",
		Subject: "Welcome!",
		Body:    "<p>Hi {{name}}</p>",
		Active:  true,
	})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if created == nil {
		t.Fatal("template should be persisted")
	}
	if tmpl.ID != "welcome_v1" {
		t.Fatalf("template id = %q, want trimmed welcome_v1", tmpl.ID)
	}
}

func TestAdminServiceCreateTemplateDuplicate(t *testing.T) {
	t.Parallel()

	templates := &fakeTemplateRepo{
		createFn: func(ctx context.Context, tmpl *domain.Template) error {
			return domain.ErrConflict
		},
	}

	svc := newTestAdminService(t, templates, &fakeRuleRepo{})

	_, err := svc.CreateTemplate(context.Background(), &domain.Template{
		ID:      "welcome_v1",
		Subject: "Welcome!",
		Body:    "<p>Hi</p>",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("CreateTemplate() error = %v, want conflict", err)
	}
}

func TestAdminServiceCreateTemplateValidation(t *testing.T) {
	t.Parallel()

	svc := newTestAdminService(t, &fakeTemplateRepo{}, &fakeRuleRepo{})

	_, err := svc.CreateTemplate(context.Background(), &domain.Template{
		ID:      "welcome_v1",
		Subject: "",
		Body:    "<p>Hi</p>",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateTemplate() error = %v, want validation error", err)
	}
}

func TestAdminServiceCreateRule(t *testing.T) {
	t.Parallel()

	var created *domain.DripRule

	templates := &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			if id != "welcome_v1" {
				t.Fatalf("template lookup = %q, want welcome_v1", id)
			}
			return &domain.Template{ID: id, Subject: "Welcome!", Body: "<p>Hi</p>", Active: true}, nil
		},
	}
	rules := &fakeRuleRepo{
		createFn: func(ctx context.Context, rule *domain.DripRule) error {
			created = rule
			return nil
		},
	}

	svc := newTestAdminService(t, templates, rules)

	rule, err := svc.CreateRule(context.Background(), &domain.DripRule{
		Name:       "welcome",
		EventType:  domain.EventSignup,
		TemplateID: "welcome_v1",
		Priority:   domain.PriorityNormal,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if created == nil {
		t.Fatal("rule should be persisted")
	}
	if rule.ID == "" {
		t.Fatal("rule id should be assigned")
	}
}

func TestAdminServiceCreateRuleUnknownTemplate(t *testing.T) {
	t.Parallel()

	createCalled := false

	rules := &fakeRuleRepo{
		createFn: func(ctx context.Context, rule *domain.DripRule) error {
			createCalled = true
			return nil
		},
	}

	svc := newTestAdminService(t, &fakeTemplateRepo{}, rules)

	_, err := svc.CreateRule(context.Background(), &domain.DripRule{
		Name:       "welcome",
		EventType:  domain.EventSignup,
		TemplateID: "missing",
		Priority:   domain.PriorityNormal,
		Active:     true,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateRule() error = %v, want validation error", err)
	}
	if createCalled {
		t.Fatal("rule should not be created when template does not exist")
	}
}

func TestAdminServiceCreateRuleNegativeDelay(t *testing.T) {
	t.Parallel()

	svc := newTestAdminService(t, &fakeTemplateRepo{}, &fakeRuleRepo{})

	_, err := svc.CreateRule(context.Background(), &domain.DripRule{
		Name:       "welcome",
		EventType:  domain.EventSignup,
		TemplateID: "welcome_v1",
		Delay:      -1,
		Priority:   domain.PriorityNormal,
		Active:     true,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateRule() error = %v, want validation error", err)
	}
}

func TestAdminServiceUpdateRuleRequiresID(t *testing.T) {
	t.Parallel()

	svc := newTestAdminService(t, &fakeTemplateRepo{}, &fakeRuleRepo{})

	_, err := svc.UpdateRule(context.Background(), &domain.DripRule{
		Name:       "welcome",
		EventType:  domain.EventSignup,
		TemplateID: "welcome_v1",
		Priority:   domain.PriorityNormal,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("UpdateRule() error = %v, want validation error", err)
	}
}
