package email

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType represents the type of email provider
type ProviderType string

const (
	ProviderTypeConsole ProviderType = "console"
	ProviderTypeSMTP    ProviderType = "smtp"
	ProviderTypeNoOp    ProviderType = "noop"

	ProviderTypeSendGrid  ProviderType = "sendgrid"
	ProviderTypeMailgun   ProviderType = "mailgun"
	ProviderTypeAWSSES    ProviderType = "aws_ses"
	ProviderTypeMailchimp ProviderType = "mailchimp"
)

// Config selects and configures the email provider.
type Config struct {
	Provider     ProviderType `koanf:"provider"`
	FromAddress  string       `koanf:"from"`
	FromName     string       `koanf:"from_name"`
	AppName      string       `koanf:"app_name"`
	SupportEmail string       `koanf:"support_email"`
	BaseURL      string       `koanf:"base_url"`
	SMTP         SMTPConfig   `koanf:"smtp"`

	SendGrid  SendGridConfig  `koanf:"sendgrid"`
	Mailgun   MailgunConfig   `koanf:"mailgun"`
	AWSSES    AWSSESConfig    `koanf:"aws_ses"`
	Mailchimp MailchimpConfig `koanf:"mailchimp"`
}

// SMTPConfig holds SMTP-specific configuration
type SMTPConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	UseTLS     bool   `koanf:"use_tls"`
	UseSSL     bool   `koanf:"use_ssl"`
	SkipVerify bool   `koanf:"skip_verify"`
}

// SendGridConfig holds SendGrid-specific configuration
type SendGridConfig struct {
	APIKey  string `koanf:"api_key"`
	APIBase string `koanf:"api_base"`
}

// MailgunConfig holds Mailgun-specific configuration
type MailgunConfig struct {
	Domain  string `koanf:"domain"`
	APIKey  string `koanf:"api_key"`
	APIBase string `koanf:"api_base"` // e.g. https://api.eu.mailgun.net/v3
}

// AWSSESConfig holds AWS SES configuration
type AWSSESConfig struct {
	Region          string `koanf:"region"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	Endpoint        string `koanf:"endpoint"`
}

// MailchimpConfig holds Mailchimp Transactional (Mandrill) configuration
type MailchimpConfig struct {
	APIKey  string `koanf:"api_key"`
	APIBase string `koanf:"api_base"`
}

// VerificationEmailData contains data for address verification emails
type VerificationEmailData struct {
	To       string
	Username string
	Token    string
	Link     string
	AppName  string
}

// WelcomeEmailData contains data for accounts created on a user's behalf, such as by bulk import.
// Password is set only when one was generated.
type WelcomeEmailData struct {
	To       string
	Username string
	Password string
	AppName  string
}

// PasswordResetEmailData contains data for password reset emails
type PasswordResetEmailData struct {
	To           string
	Username     string
	Token        string
	Link         string
	ExpiresInMin int
	AppName      string
	SupportEmail string
}

// EmailData represents generic email data
type EmailData struct {
	To          string
	Subject     string
	TextBody    string
	FromAddress string
	FromName    string
	ReplyTo     string
}

// Sender defines the interface for sending emails
type Sender interface {
	SendVerification(ctx context.Context, data VerificationEmailData) error
	SendWelcome(ctx context.Context, data WelcomeEmailData) error
	SendPasswordReset(ctx context.Context, data PasswordResetEmailData) error

	// SendEmail sends a generic email
	SendEmail(ctx context.Context, data EmailData) error

	// Health checks if the email service is available
	Health(ctx context.Context) error

	ProviderType() ProviderType
}

// Factory creates a Sender from cfg. An empty provider falls back to the console.
func Factory(cfg Config) (Sender, error) {
	switch ProviderType(strings.ToLower(string(cfg.Provider))) {
	case ProviderTypeConsole, "":
		return NewConsoleSender(nil), nil
	case ProviderTypeSMTP:
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("smtp host is required")
		}
		return NewSMTPSender(cfg), nil
	case ProviderTypeNoOp:
		return NewNoOpSender(), nil
	case ProviderTypeSendGrid:
		return provider(NewSendGridSender(cfg))
	case ProviderTypeMailgun:
		return provider(NewMailgunSender(cfg))
	case ProviderTypeAWSSES:
		return provider(NewAWSSESSender(cfg))
	case ProviderTypeMailchimp:
		return provider(NewMailchimpSender(cfg))
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// provider keeps a failed constructor from yielding a non-nil Sender holding a nil pointer.
func provider[T Sender](s T, err error) (Sender, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
