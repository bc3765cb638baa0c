package domain

import (
	"fmt"
	"strings"
	"time"
)

// Outcome classifies a single delivery attempt for the audit log.
type Outcome string

const (
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeFailureTransient Outcome = "FAILURE_TRANSIENT"
	OutcomeFailurePermanent Outcome = "FAILURE_PERMANENT"
	OutcomeRenderError      Outcome = "RENDER_ERROR"
	OutcomeSuppressed       Outcome = "SUPPRESSED"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailureTransient, OutcomeFailurePermanent, OutcomeRenderError, OutcomeSuppressed:
		return true
	}
	return false
}

func ParseOutcomeFromString(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid outcome %q", ErrValidation, s)
	}
	return o, nil
}

// AuditRecord is an append-only record of one delivery attempt.
type AuditRecord struct {
	ID                string  `gorm:"type:uuid;primaryKey"`
	SendID            string  `gorm:"type:uuid;not null"`
	AttemptNumber     int     `gorm:"not null"`
	Outcome           Outcome `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string `gorm:"type:varchar(255)"`
	ErrorDetail       *string `gorm:"type:text"`
	AttemptedAt       time.Time
	CreatedAt         time.Time
}
