package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// MailchimpSender sends emails via Mailchimp Transactional (Mandrill) API
type MailchimpSender struct {
	apiSender
	apiKey  string
	apiBase string
}

// NewMailchimpSender creates a Mandrill sender from cfg.Mailchimp.
func NewMailchimpSender(cfg Config) (*MailchimpSender, error) {
	if cfg.Mailchimp.APIKey == "" {
		return nil, fmt.Errorf("Mailchimp API key is required")
	}
	apiBase := cfg.Mailchimp.APIBase
	if apiBase == "" {
		apiBase = "https://mandrillapp.com/api/1.0"
	}
	s := &MailchimpSender{apiSender: newAPISender(cfg), apiKey: cfg.Mailchimp.APIKey, apiBase: strings.TrimRight(apiBase, "/")}
	s.send = s.SendEmail
	return s, nil
}

type mandrillRecipient struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type mandrillMessage struct {
	FromEmail string              `json:"from_email"`
	FromName  string              `json:"from_name,omitempty"`
	To        []mandrillRecipient `json:"to"`
	Subject   string              `json:"subject"`
	Text      string              `json:"text"`
	Headers   map[string]string   `json:"headers,omitempty"`
}

type mandrillResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason"`
}

// SendEmail sends an email via Mandrill API
func (s *MailchimpSender) SendEmail(ctx context.Context, data EmailData) error {
	fromAddr, fromName := s.from(data)
	msg := mandrillMessage{
		FromEmail: fromAddr,
		FromName:  fromName,
		To:        []mandrillRecipient{{Email: data.To, Type: "to"}},
		Subject:   data.Subject,
		Text:      data.TextBody,
	}
	if data.ReplyTo != "" {
		msg.Headers = map[string]string{"Reply-To": data.ReplyTo}
	}
	body, err := s.post(ctx, "/messages/send.json", map[string]any{"key": s.apiKey, "message": msg})
	if err != nil {
		return err
	}

	var results []mandrillResult
	if err := json.Unmarshal(body, &results); err == nil && len(results) > 0 {
		if r := results[0]; r.Status == "rejected" || r.Status == "invalid" {
			return fmt.Errorf("Mandrill rejected email: %s", r.RejectReason)
		}
	}
	return nil
}

// Health checks if Mailchimp Transactional (Mandrill) API is accessible
func (s *MailchimpSender) Health(ctx context.Context) error {
	_, err := s.post(ctx, "/users/ping.json", map[string]string{"key": s.apiKey})
	return err
}

func (s *MailchimpSender) post(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Mandrill payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+path, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create Mandrill request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, "Mandrill")
}

// ProviderType returns the provider type
func (s *MailchimpSender) ProviderType() ProviderType {
	return ProviderTypeMailchimp
}
