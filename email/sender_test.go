package email

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFactory(t *testing.T) {
	tests := []struct {
		cfg      Config
		expected ProviderType
		wantErr  bool
	}{
		{Config{}, ProviderTypeConsole, false},
		{Config{Provider: "noop"}, ProviderTypeNoOp, false},
		{Config{Provider: "SMTP", SMTP: SMTPConfig{Host: "localhost"}}, ProviderTypeSMTP, false},
		{Config{Provider: "smtp"}, "", true},
		{Config{Provider: "carrier-pigeon"}, "", true},
	}
	for _, tt := range tests {
		s, err := Factory(tt.cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Expected error for %+v", tt.cfg)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Factory(%+v): %v", tt.cfg, err)
		}
		if s.ProviderType() != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, s.ProviderType())
		}
	}
}

func TestSMTPSender_DefaultPort(t *testing.T) {
	if p := NewSMTPSender(Config{SMTP: SMTPConfig{UseSSL: true}}).config.Port; p != 465 {
		t.Errorf("Expected 465, got %d", p)
	}
	if p := NewSMTPSender(Config{}).config.Port; p != 587 {
		t.Errorf("Expected 587, got %d", p)
	}
}

func TestConsoleSender_LogsRenderedBody(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSender(slog.New(slog.NewTextHandler(&buf, nil)))
	err := s.SendWelcome(context.Background(), WelcomeEmailData{To: "a@example.com", Username: "ada", Password: "s3cret", AppName: "Registry"})
	if err != nil {
		t.Fatalf("SendWelcome: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"a@example.com", "Welcome to Registry", "s3cret"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %q, got %s", want, out)
		}
	}
}

func TestTemplates(t *testing.T) {
	msg, err := passwordResetEmail(PasswordResetEmailData{To: "a@example.com", Token: "tok", ExpiresInMin: 60, AppName: "Registry"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.TextBody, "tok") || !strings.Contains(msg.TextBody, "60 minutes") {
		t.Errorf("Unexpected reset body: %s", msg.TextBody)
	}
	msg, err = verificationEmail(VerificationEmailData{To: "a@example.com", Link: "http://x/verify/tok"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.TextBody, "http://x/verify/tok") {
		t.Errorf("Unexpected verification body: %s", msg.TextBody)
	}
}
