package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Priority represents the send priority of a rule's emails.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// ConditionOperator compares one event payload field against a condition value.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "EQUALS"
	OpNotEquals   ConditionOperator = "NOT_EQUALS"
	OpContains    ConditionOperator = "CONTAINS"
	OpNotContains ConditionOperator = "NOT_CONTAINS"
	OpGreaterThan ConditionOperator = "GREATER_THAN"
	OpLessThan    ConditionOperator = "LESS_THAN"
	OpExists      ConditionOperator = "EXISTS"
	OpNotExists   ConditionOperator = "NOT_EXISTS"
)

func (o ConditionOperator) String() string { return string(o) }

func (o ConditionOperator) IsValid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpExists, OpNotExists:
		return true
	}
	return false
}

func ParseConditionOperatorFromString(s string) (ConditionOperator, error) {
	op := ConditionOperator(strings.ToUpper(strings.TrimSpace(s)))
	if !op.IsValid() {
		return "", fmt.Errorf("%w: invalid condition operator %q", ErrValidation, s)
	}
	return op, nil
}

// RuleCondition gates a rule on one event payload field. A rule fires only
// when all of its conditions hold.
type RuleCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value,omitempty"`
}

func (c RuleCondition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("%w: condition field is required", ErrValidation)
	}
	if !c.Operator.IsValid() {
		return fmt.Errorf("%w: invalid condition operator %q", ErrValidation, c.Operator)
	}
	switch c.Operator {
	case OpExists, OpNotExists:
	default:
		if c.Value == "" {
			return fmt.Errorf("%w: condition value is required for operator %s", ErrValidation, c.Operator)
		}
	}
	return nil
}

// Matches evaluates the condition against an event payload. GREATER_THAN and
// LESS_THAN compare numerically; a non-numeric operand fails the condition
// rather than comparing lexically. A missing field satisfies only the negative
// operators.
func (c RuleCondition) Matches(payload map[string]string) bool {
	value, ok := payload[c.Field]

	switch c.Operator {
	case OpExists:
		return ok
	case OpNotExists:
		return !ok
	}
	if !ok {
		return c.Operator == OpNotEquals || c.Operator == OpNotContains
	}

	switch c.Operator {
	case OpEquals:
		return value == c.Value
	case OpNotEquals:
		return value != c.Value
	case OpContains:
		return strings.Contains(value, c.Value)
	case OpNotContains:
		return !strings.Contains(value, c.Value)
	case OpGreaterThan:
		got, gotErr := strconv.ParseFloat(value, 64)
		want, wantErr := strconv.ParseFloat(c.Value, 64)
		return gotErr == nil && wantErr == nil && got > want
	case OpLessThan:
		got, gotErr := strconv.ParseFloat(value, 64)
		want, wantErr := strconv.ParseFloat(c.Value, 64)
		return gotErr == nil && wantErr == nil && got < want
	}
	return false
}

// DripRule maps an event type to a candidate template send. Delay is how long
// after the event a send becomes eligible; Cooldown is the minimum time since
// the last send of the same template to the same user. Conditions further gate
// the rule on event payload fields. Rules are read-only at send time.
type DripRule struct {
	ID         string          `gorm:"type:uuid;primaryKey"`
	Name       string          `gorm:"type:varchar(255);not null"`
	EventType  EventType       `gorm:"type:varchar(20);not null"`
	TemplateID string          `gorm:"type:varchar(64);not null"`
	Delay      time.Duration   `gorm:"-"`
	Cooldown   time.Duration   `gorm:"-"`
	Conditions []RuleCondition `gorm:"-"`
	Priority   Priority        `gorm:"type:varchar(10);not null"`
	StartAt    *time.Time
	EndAt      *time.Time
	Active     bool `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *DripRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: rule name is required", ErrValidation)
	}
	if !r.EventType.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", ErrValidation, r.EventType)
	}
	if strings.TrimSpace(r.TemplateID) == "" {
		return fmt.Errorf("%w: template id is required", ErrValidation)
	}
	if r.Delay < 0 {
		return fmt.Errorf("%w: delay must not be negative", ErrValidation)
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", ErrValidation)
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, r.Priority)
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if r.StartAt != nil && r.EndAt != nil && r.EndAt.Before(*r.StartAt) {
		return fmt.Errorf("%w: endAt must not precede startAt", ErrValidation)
	}
	return nil
}

// MatchesPayload reports whether every condition holds for the payload.
// A rule with no conditions matches every event of its type.
func (r *DripRule) MatchesPayload(payload map[string]string) bool {
	for _, c := range r.Conditions {
		if !c.Matches(payload) {
			return false
		}
	}
	return true
}

// ActiveAt reports whether the rule's schedule window covers the given time.
func (r *DripRule) ActiveAt(t time.Time) bool {
	if !r.Active {
		return false
	}
	if r.StartAt != nil && t.Before(*r.StartAt) {
		return false
	}
	if r.EndAt != nil && t.After(*r.EndAt) {
		return false
	}
	return true
}
