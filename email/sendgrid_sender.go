package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SendGridSender sends emails via SendGrid API
type SendGridSender struct {
	apiSender
	apiKey  string
	apiBase string
}

// NewSendGridSender creates a SendGrid sender from cfg.SendGrid.
func NewSendGridSender(cfg Config) (*SendGridSender, error) {
	if cfg.SendGrid.APIKey == "" {
		return nil, fmt.Errorf("SendGrid API key is required")
	}
	apiBase := cfg.SendGrid.APIBase
	if apiBase == "" {
		apiBase = "https://api.sendgrid.com/v3"
	}
	s := &SendGridSender{apiSender: newAPISender(cfg), apiKey: cfg.SendGrid.APIKey, apiBase: strings.TrimRight(apiBase, "/")}
	s.send = s.SendEmail
	return s, nil
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPayload struct {
	Personalizations []struct {
		To []sendGridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendGridAddress   `json:"from"`
	ReplyTo *sendGridAddress  `json:"reply_to,omitempty"`
	Subject string            `json:"subject"`
	Content []sendGridContent `json:"content"`
}

// SendEmail sends an email via SendGrid API
func (s *SendGridSender) SendEmail(ctx context.Context, data EmailData) error {
	fromAddr, fromName := s.from(data)

	var payload sendGridPayload
	payload.Personalizations = make([]struct {
		To []sendGridAddress `json:"to"`
	}, 1)
	payload.Personalizations[0].To = []sendGridAddress{{Email: data.To}}
	payload.From = sendGridAddress{Email: fromAddr, Name: fromName}
	if data.ReplyTo != "" {
		payload.ReplyTo = &sendGridAddress{Email: data.ReplyTo}
	}
	payload.Subject = data.Subject
	payload.Content = []sendGridContent{{Type: "text/plain", Value: data.TextBody}}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SendGrid payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/mail/send", bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create SendGrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	_, err = s.do(req, "SendGrid")
	return err
}

// Health checks if SendGrid API is accessible
func (s *SendGridSender) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/scopes", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	_, err = s.do(req, "SendGrid")
	return err
}

// ProviderType returns the provider type
func (s *SendGridSender) ProviderType() ProviderType {
	return ProviderTypeSendGrid
}
