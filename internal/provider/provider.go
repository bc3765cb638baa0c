package provider

import "context"

// EmailMessage is a fully rendered email ready for delivery.
type EmailMessage struct {
	To         string
	Subject    string
	HTML       string
	TemplateID string
}

// SendResult stores provider call metadata for audit and persistence.
type SendResult struct {
	StatusCode int
	MessageID  string
}

// Provider is the outbound email delivery port.
type Provider interface {
	Send(ctx context.Context, msg EmailMessage) (*SendResult, error)
}
