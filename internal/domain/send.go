package domain

import (
	"fmt"
	"strings"
	"time"
)

// SendStatus represents the lifecycle state of a pending send. Terminal
// statuses are final; retries never resurrect a terminal record.
type SendStatus string

const (
	SendStatusPending    SendStatus = "PENDING"
	SendStatusSent       SendStatus = "SENT"
	SendStatusFailed     SendStatus = "FAILED"
	SendStatusSuppressed SendStatus = "SUPPRESSED"
)

func (s SendStatus) String() string { return string(s) }

func (s SendStatus) IsValid() bool {
	switch s {
	case SendStatusPending, SendStatusSent, SendStatusFailed, SendStatusSuppressed:
		return true
	}
	return false
}

func (s SendStatus) IsTerminal() bool {
	switch s {
	case SendStatusSent, SendStatusFailed, SendStatusSuppressed:
		return true
	}
	return false
}

func ParseSendStatusFromString(s string) (SendStatus, error) {
	st := SendStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid send status %q", ErrValidation, s)
	}
	return st, nil
}

// PendingSend is a scheduled delivery of one template to one user. At most one
// non-terminal record may exist per (user, template) pair at any time, and each
// (event, rule) pair produces at most one send ever, terminal or not.
type PendingSend struct {
	ID                string            `gorm:"type:uuid;primaryKey"`
	EventID           string            `gorm:"type:uuid;not null"`
	UserID            string            `gorm:"type:varchar(64);not null"`
	RuleID            string            `gorm:"type:uuid;not null"`
	TemplateID        string            `gorm:"type:varchar(64);not null"`
	Recipient         string            `gorm:"type:varchar(255);not null"`
	Variables         map[string]string `gorm:"serializer:json"`
	Priority          Priority          `gorm:"type:varchar(10);not null"`
	Status            SendStatus        `gorm:"type:varchar(20);not null"`
	ScheduledFor      time.Time         `gorm:"not null"`
	AttemptCount      int               `gorm:"not null;default:0"`
	MaxAttempts       int               `gorm:"not null;default:3"`
	NextAttemptAt     *time.Time
	ProviderMessageID *string `gorm:"type:varchar(255)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *PendingSend) Validate() error {
	if strings.TrimSpace(p.EventID) == "" {
		return fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if strings.TrimSpace(p.TemplateID) == "" {
		return fmt.Errorf("%w: template id is required", ErrValidation)
	}
	if strings.TrimSpace(p.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !p.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, p.Priority)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: invalid send status %q", ErrValidation, p.Status)
	}
	if p.ScheduledFor.IsZero() {
		return fmt.Errorf("%w: scheduledFor is required", ErrValidation)
	}
	return nil
}
