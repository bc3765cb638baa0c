package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrTemplateNotFound = errors.New("template not found")
	ErrRender           = errors.New("render error")
)

// RenderError reports a template variable that was required but not supplied.
type RenderError struct {
	TemplateID string
	Variable   string
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("render error: template %q missing required variable %q", e.TemplateID, e.Variable)
}

func (e *RenderError) Unwrap() error { return ErrRender }
