package template

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"dripmail/internal/domain"
)

var (
	rawVarPattern     = regexp.MustCompile(`\{\{\{(\w+)\}\}\}`)
	escapedVarPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)
)

// RenderedContent is a template with all variables substituted, ready for the
// provider.
type RenderedContent struct {
	Subject string
	Body    string
}

// Store is the lookup port for templates. Lookups are by exact identifier;
// there is no fallback template.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Template, error)
}

// Registry renders templates against user variables. `{{name}}` substitutes
// the HTML-escaped value, `{{{name}}}` substitutes the raw value. Placeholders
// without a value are left untouched.
type Registry struct {
	store Store
}

func NewRegistry(store Store) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("template store is required")
	}
	return &Registry{store: store}, nil
}

func (r *Registry) Render(ctx context.Context, templateID string, variables map[string]string) (*RenderedContent, error) {
	id := strings.TrimSpace(templateID)
	if id == "" {
		return nil, fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}

	tpl, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, name := range tpl.RequiredVariables {
		if strings.TrimSpace(variables[name]) == "" {
			return nil, &domain.RenderError{TemplateID: tpl.ID, Variable: name}
		}
	}

	subject := substituteEscaped(tpl.Subject, variables)

	// Raw placeholders resolve first so `{{{name}}}` is not misread as an
	// escaped `{{name}}` with stray braces.
	body := substituteRaw(tpl.Body, variables)
	body = substituteEscaped(body, variables)

	return &RenderedContent{
		Subject: subject,
		Body:    body,
	}, nil
}

func substituteRaw(text string, variables map[string]string) string {
	return rawVarPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := rawVarPattern.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok && value != "" {
			return value
		}
		return ""
	})
}

func substituteEscaped(text string, variables map[string]string) string {
	return escapedVarPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := escapedVarPattern.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok && value != "" {
			return html.EscapeString(value)
		}
		return match
	})
}
