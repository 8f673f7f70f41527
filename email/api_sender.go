package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiSender carries what every HTTP API provider shares. It renders the account
// emails and hands them to send.
type apiSender struct {
	fromAddress  string
	fromName     string
	appName      string
	supportEmail string
	httpClient   *http.Client
	send         func(context.Context, EmailData) error
}

func newAPISender(cfg Config) apiSender {
	appName := cfg.AppName
	if appName == "" {
		appName = "User Registry"
	}
	fromName := cfg.FromName
	if fromName == "" {
		fromName = appName
	}
	return apiSender{
		fromAddress:  cfg.FromAddress,
		fromName:     fromName,
		appName:      appName,
		supportEmail: cfg.SupportEmail,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *apiSender) SendVerification(ctx context.Context, data VerificationEmailData) error {
	if data.AppName == "" {
		data.AppName = s.appName
	}
	msg, err := verificationEmail(data)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *apiSender) SendWelcome(ctx context.Context, data WelcomeEmailData) error {
	if data.AppName == "" {
		data.AppName = s.appName
	}
	msg, err := welcomeEmail(data)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *apiSender) SendPasswordReset(ctx context.Context, data PasswordResetEmailData) error {
	if data.AppName == "" {
		data.AppName = s.appName
	}
	if data.SupportEmail == "" {
		data.SupportEmail = s.supportEmail
	}
	msg, err := passwordResetEmail(data)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// from resolves the sender of data, falling back to the configured one.
func (s *apiSender) from(data EmailData) (addr, name string) {
	addr, name = data.FromAddress, data.FromName
	if addr == "" {
		addr = s.fromAddress
	}
	if name == "" {
		name = s.fromName
	}
	return addr, name
}

// do sends req and turns a non-2xx answer into an error naming provider.
func (s *apiSender) do(req *http.Request, provider string) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %w", provider, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return body, fmt.Errorf("%s authentication failed (status %d)", provider, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, string(body))
	}
	return body, nil
}
