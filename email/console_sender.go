package email

import (
	"context"
	"log/slog"
)

// ConsoleSender logs emails instead of delivering them (for development/testing)
type ConsoleSender struct {
	logger *slog.Logger
}

// NewConsoleSender creates a console-based email sender. A nil logger uses slog.Default.
func NewConsoleSender(logger *slog.Logger) Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSender{logger: logger}
}

func (c *ConsoleSender) SendVerification(ctx context.Context, data VerificationEmailData) error {
	msg, err := verificationEmail(data)
	if err != nil {
		return err
	}
	return c.SendEmail(ctx, msg)
}

func (c *ConsoleSender) SendWelcome(ctx context.Context, data WelcomeEmailData) error {
	msg, err := welcomeEmail(data)
	if err != nil {
		return err
	}
	return c.SendEmail(ctx, msg)
}

func (c *ConsoleSender) SendPasswordReset(ctx context.Context, data PasswordResetEmailData) error {
	msg, err := passwordResetEmail(data)
	if err != nil {
		return err
	}
	return c.SendEmail(ctx, msg)
}

// SendEmail logs the email
func (c *ConsoleSender) SendEmail(ctx context.Context, data EmailData) error {
	c.logger.InfoContext(ctx, "email",
		"to", data.To,
		"subject", data.Subject,
		"body", data.TextBody,
	)
	return nil
}

// Health always returns nil for console sender
func (c *ConsoleSender) Health(ctx context.Context) error {
	return nil
}

func (c *ConsoleSender) ProviderType() ProviderType {
	return ProviderTypeConsole
}

// NoOpSender is a no-operation sender that discards emails silently
type NoOpSender struct{}

// NewNoOpSender creates a no-operation email sender
func NewNoOpSender() Sender {
	return &NoOpSender{}
}

func (n *NoOpSender) SendVerification(ctx context.Context, data VerificationEmailData) error {
	return nil
}

func (n *NoOpSender) SendWelcome(ctx context.Context, data WelcomeEmailData) error {
	return nil
}

func (n *NoOpSender) SendPasswordReset(ctx context.Context, data PasswordResetEmailData) error {
	return nil
}

func (n *NoOpSender) SendEmail(ctx context.Context, data EmailData) error {
	return nil
}

func (n *NoOpSender) Health(ctx context.Context) error {
	return nil
}

func (n *NoOpSender) ProviderType() ProviderType {
	return ProviderTypeNoOp
}
