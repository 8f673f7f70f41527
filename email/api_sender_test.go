package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   string
}

func newCapture(t *testing.T, status int, reply string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, capturedRequest{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: string(body)})
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestFactory_APIProviders(t *testing.T) {
	tests := []struct {
		cfg      Config
		expected ProviderType
		wantErr  bool
	}{
		{Config{Provider: "sendgrid", SendGrid: SendGridConfig{APIKey: "k"}}, ProviderTypeSendGrid, false},
		{Config{Provider: "sendgrid"}, "", true},
		{Config{Provider: "mailgun", Mailgun: MailgunConfig{Domain: "mg.example.com", APIKey: "k"}}, ProviderTypeMailgun, false},
		{Config{Provider: "mailgun", Mailgun: MailgunConfig{APIKey: "k"}}, "", true},
		{Config{Provider: "aws_ses", AWSSES: AWSSESConfig{Region: "eu-west-1", AccessKeyID: "a", SecretAccessKey: "s"}}, ProviderTypeAWSSES, false},
		{Config{Provider: "aws_ses", AWSSES: AWSSESConfig{Region: "eu-west-1"}}, "", true},
		{Config{Provider: "mailchimp", Mailchimp: MailchimpConfig{APIKey: "k"}}, ProviderTypeMailchimp, false},
		{Config{Provider: "mailchimp"}, "", true},
	}
	for _, tt := range tests {
		s, err := Factory(tt.cfg)
		if tt.wantErr {
			if err == nil || s != nil {
				t.Errorf("Expected error and nil sender for %+v, got %v, %v", tt.cfg, s, err)
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

func TestSendGridSender_SendWelcome(t *testing.T) {
	srv, got := newCapture(t, http.StatusAccepted, "")
	s, err := NewSendGridSender(Config{FromAddress: "no-reply@example.com", AppName: "Registry", SendGrid: SendGridConfig{APIKey: "sg-key", APIBase: srv.URL}})
	if err != nil {
		t.Fatalf("NewSendGridSender: %v", err)
	}
	if err := s.SendWelcome(context.Background(), WelcomeEmailData{To: "ada@example.com", Username: "ada", Password: "s3cret"}); err != nil {
		t.Fatalf("SendWelcome: %v", err)
	}
	if len(*got) != 1 {
		t.Fatalf("Expected one request, got %d", len(*got))
	}
	req := (*got)[0]
	if req.path != "/mail/send" || req.header.Get("Authorization") != "Bearer sg-key" {
		t.Errorf("Unexpected request %s %v", req.path, req.header)
	}
	var payload sendGridPayload
	if err := json.Unmarshal([]byte(req.body), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Personalizations[0].To[0].Email != "ada@example.com" || payload.Subject != "Welcome to Registry" {
		t.Errorf("Unexpected payload %+v", payload)
	}
	if payload.From.Email != "no-reply@example.com" || payload.From.Name != "Registry" {
		t.Errorf("Expected configured sender, got %+v", payload.From)
	}
	if !strings.Contains(payload.Content[0].Value, "s3cret") {
		t.Errorf("Expected rendered body, got %q", payload.Content[0].Value)
	}
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv, _ := newCapture(t, http.StatusBadRequest, `{"errors":[{"message":"bad"}]}`)
	s, _ := NewSendGridSender(Config{SendGrid: SendGridConfig{APIKey: "k", APIBase: srv.URL}})
	err := s.SendEmail(context.Background(), EmailData{To: "a@example.com", Subject: "x", TextBody: "y"})
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("Expected status error, got %v", err)
	}

	srv, _ = newCapture(t, http.StatusUnauthorized, "")
	s, _ = NewSendGridSender(Config{SendGrid: SendGridConfig{APIKey: "k", APIBase: srv.URL}})
	if err := s.Health(context.Background()); err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Fatalf("Expected authentication error, got %v", err)
	}
}

func TestMailgunSender_SendPasswordReset(t *testing.T) {
	srv, got := newCapture(t, http.StatusOK, `{"id":"<1@mg>"}`)
	s, err := NewMailgunSender(Config{FromAddress: "no-reply@example.com", SupportEmail: "help@example.com", Mailgun: MailgunConfig{Domain: "mg.example.com", APIKey: "mg-key", APIBase: srv.URL}})
	if err != nil {
		t.Fatalf("NewMailgunSender: %v", err)
	}
	err = s.SendPasswordReset(context.Background(), PasswordResetEmailData{To: "ada@example.com", Token: "tok", ExpiresInMin: 15})
	if err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	req := (*got)[0]
	if req.path != "/mg.example.com/messages" {
		t.Errorf("Expected domain messages endpoint, got %s", req.path)
	}
	if user, pass, ok := (&http.Request{Header: req.header}).BasicAuth(); !ok || user != "api" || pass != "mg-key" {
		t.Errorf("Expected basic auth api:mg-key, got %s:%s", user, pass)
	}
	form, err := url.ParseQuery(req.body)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if form.Get("to") != "ada@example.com" || form.Get("from") != "User Registry <no-reply@example.com>" {
		t.Errorf("Unexpected form %v", form)
	}
	if text := form.Get("text"); !strings.Contains(text, "tok") || !strings.Contains(text, "help@example.com") {
		t.Errorf("Expected token and support address in body, got %q", text)
	}
}

func TestMailchimpSender_Rejected(t *testing.T) {
	srv, got := newCapture(t, http.StatusOK, `[{"email":"ada@example.com","status":"rejected","reject_reason":"hard-bounce"}]`)
	s, err := NewMailchimpSender(Config{FromAddress: "no-reply@example.com", Mailchimp: MailchimpConfig{APIKey: "md-key", APIBase: srv.URL}})
	if err != nil {
		t.Fatalf("NewMailchimpSender: %v", err)
	}
	err = s.SendVerification(context.Background(), VerificationEmailData{To: "ada@example.com", Token: "abc"})
	if err == nil || !strings.Contains(err.Error(), "hard-bounce") {
		t.Fatalf("Expected rejection error, got %v", err)
	}
	req := (*got)[0]
	if req.path != "/messages/send.json" {
		t.Errorf("Unexpected path %s", req.path)
	}
	var payload struct {
		Key     string          `json:"key"`
		Message mandrillMessage `json:"message"`
	}
	if err := json.Unmarshal([]byte(req.body), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Key != "md-key" || payload.Message.To[0].Email != "ada@example.com" {
		t.Errorf("Unexpected payload %+v", payload)
	}
}

func TestAWSSESSender_SignsRequest(t *testing.T) {
	srv, got := newCapture(t, http.StatusOK, "<SendEmailResponse/>")
	s, err := NewAWSSESSender(Config{FromAddress: "no-reply@example.com", AWSSES: AWSSESConfig{
		Region: "eu-west-1", AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", Endpoint: srv.URL + "/",
	}})
	if err != nil {
		t.Fatalf("NewAWSSESSender: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	if err := s.SendEmail(context.Background(), EmailData{To: "ada@example.com", Subject: "Hi", TextBody: "Body"}); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	req := (*got)[0]
	if req.header.Get("X-Amz-Date") != "20260102T030405Z" {
		t.Errorf("Unexpected X-Amz-Date %q", req.header.Get("X-Amz-Date"))
	}
	auth := req.header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20260102/eu-west-1/ses/aws4_request, SignedHeaders=content-type;host;x-amz-date, Signature=") {
		t.Errorf("Unexpected Authorization %q", auth)
	}
	form, _ := url.ParseQuery(req.body)
	if form.Get("Action") != "SendEmail" || form.Get("Destination.ToAddresses.member.1") != "ada@example.com" {
		t.Errorf("Unexpected form %v", form)
	}

	// Same input signs to the same signature.
	if err := s.SendEmail(context.Background(), EmailData{To: "ada@example.com", Subject: "Hi", TextBody: "Body"}); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if again := (*got)[1].header.Get("Authorization"); again != auth {
		t.Errorf("Expected deterministic signature, got %q and %q", auth, again)
	}
}
