package queue

import (
	"fmt"
	"strings"

	"dripmail/internal/domain"
)

// SendMessage is the broker payload that wakes a dispatcher for one pending
// send. The database row stays the source of truth; the message carries just
// enough to find and prioritize it.
type SendMessage struct {
	SendID     string          `json:"sendId"`
	UserID     string          `json:"userId,omitempty"`
	TemplateID string          `json:"templateId,omitempty"`
	Priority   domain.Priority `json:"priority"`
}

func (m SendMessage) Validate() error {
	if strings.TrimSpace(m.SendID) == "" {
		return fmt.Errorf("sendId is required")
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", m.Priority)
	}
	return nil
}
