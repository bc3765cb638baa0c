package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	resendBaseURL        = "https://api.resend.com"
	defaultResendTimeout = 10 * time.Second
)

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendRequest struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Tags    []resendTag `json:"tags,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ResendProvider delivers emails through the Resend HTTP API.
type ResendProvider struct {
	client *resty.Client
	from   string
}

func NewResendProvider(apiKey, from string, timeout time.Duration) (*ResendProvider, error) {
	client := resty.New()
	client.SetBaseURL(resendBaseURL)
	if timeout <= 0 {
		timeout = defaultResendTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetAuthToken(apiKey)

	return NewResendProviderWithClient(apiKey, from, client)
}

func NewResendProviderWithClient(apiKey, from string, client *resty.Client) (*ResendProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("resend from address is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultResendTimeout)
	}
	client.SetRetryCount(0)

	return &ResendProvider{
		client: client,
		from:   strings.TrimSpace(from),
	}, nil
}

func (p *ResendProvider) Send(ctx context.Context, msg EmailMessage) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return nil, fmt.Errorf("subject is required")
	}

	reqBody := resendRequest{
		From:    p.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	if msg.TemplateID != "" {
		reqBody.Tags = []resendTag{{Name: "template_id", Value: msg.TemplateID}}
	}

	var okBody resendResponse
	var errBody resendErrorResponse

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&okBody).
		SetError(&errBody).
		Post("/emails")
	if err != nil {
		return nil, &ProviderError{
			Message:   "resend request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "resend returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			StatusCode: statusCode,
			MessageID:  okBody.ID,
		}, nil
	}

	message := strings.TrimSpace(errBody.Message)
	if message == "" {
		message = strings.TrimSpace(response.String())
	}
	if message == "" {
		message = fmt.Sprintf("resend returned status %d", statusCode)
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientStatus(statusCode),
	}
}
