package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MailgunSender sends emails via Mailgun API
type MailgunSender struct {
	apiSender
	domain  string
	apiKey  string
	apiBase string
}

// NewMailgunSender creates a Mailgun sender from cfg.Mailgun.
func NewMailgunSender(cfg Config) (*MailgunSender, error) {
	if cfg.Mailgun.Domain == "" {
		return nil, fmt.Errorf("Mailgun domain is required")
	}
	if cfg.Mailgun.APIKey == "" {
		return nil, fmt.Errorf("Mailgun API key is required")
	}
	apiBase := cfg.Mailgun.APIBase
	if apiBase == "" {
		apiBase = "https://api.mailgun.net/v3"
	}
	s := &MailgunSender{
		apiSender: newAPISender(cfg),
		domain:    cfg.Mailgun.Domain,
		apiKey:    cfg.Mailgun.APIKey,
		apiBase:   strings.TrimRight(apiBase, "/"),
	}
	s.send = s.SendEmail
	return s, nil
}

// SendEmail sends an email via Mailgun API
func (s *MailgunSender) SendEmail(ctx context.Context, data EmailData) error {
	fromAddr, fromName := s.from(data)
	from := fromAddr
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddr)
	}

	form := url.Values{}
	form.Set("from", from)
	form.Set("to", data.To)
	form.Set("subject", data.Subject)
	form.Set("text", data.TextBody)
	if data.ReplyTo != "" {
		form.Set("h:Reply-To", data.ReplyTo)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.apiBase, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create Mailgun request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.apiKey)

	_, err = s.do(req, "Mailgun")
	return err
}

// Health checks if Mailgun API is accessible and knows the domain
func (s *MailgunSender) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/domains/%s", s.apiBase, s.domain), nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.SetBasicAuth("api", s.apiKey)
	_, err = s.do(req, "Mailgun")
	return err
}

// ProviderType returns the provider type
func (s *MailgunSender) ProviderType() ProviderType {
	return ProviderTypeMailgun
}
