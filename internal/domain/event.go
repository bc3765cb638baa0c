package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventType identifies a tracked user lifecycle action.
type EventType string

const (
	EventSignup      EventType = "SIGNUP"
	EventFirstOrder  EventType = "FIRST_ORDER"
	EventOrderPlaced EventType = "ORDER_PLACED"
	EventInactivity  EventType = "INACTIVITY"
)

func (t EventType) String() string { return string(t) }

func (t EventType) IsValid() bool {
	switch t {
	case EventSignup, EventFirstOrder, EventOrderPlaced, EventInactivity:
		return true
	}
	return false
}

func ParseEventTypeFromString(s string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid event type %q", ErrValidation, s)
	}
	return t, nil
}

// Event is an immutable record of a lifecycle action that may trigger drip emails.
type Event struct {
	ID         string            `gorm:"type:uuid;primaryKey"`
	UserID     string            `gorm:"type:varchar(64);not null"`
	Type       EventType         `gorm:"type:varchar(20);not null"`
	Recipient  string            `gorm:"type:varchar(255);not null"`
	Payload    map[string]string `gorm:"serializer:json"`
	OccurredAt time.Time         `gorm:"not null"`
	CreatedAt  time.Time
}

func (e *Event) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if strings.TrimSpace(e.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", ErrValidation, e.Type)
	}
	return nil
}
