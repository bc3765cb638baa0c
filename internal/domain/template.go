package domain

import (
	"fmt"
	"strings"
	"time"
)

const maxTemplateBody = 100000

// Template is an admin-managed email template. Edits are last-write-wins;
// the current record always reflects the latest edit.
type Template struct {
	ID                string   `gorm:"type:varchar(64);primaryKey"`
	Subject           string   `gorm:"type:varchar(500);not null"`
	Body              string   `gorm:"type:text;not null"`
	RequiredVariables []string `gorm:"serializer:json"`
	Active            bool     `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (t *Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: template id is required", ErrValidation)
	}
	if strings.TrimSpace(t.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if len([]rune(t.Body)) > maxTemplateBody {
		return fmt.Errorf("%w: body exceeds %d characters", ErrValidation, maxTemplateBody)
	}
	for _, name := range t.RequiredVariables {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: required variable names must not be empty", ErrValidation)
		}
	}
	return nil
}
