package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends emails via SMTP
type SMTPSender struct {
	config       SMTPConfig
	fromAddress  string
	fromName     string
	appName      string
	supportEmail string
}

// NewSMTPSender creates an SMTP email sender. The port defaults to 465 with SSL, 587 otherwise.
func NewSMTPSender(cfg Config) *SMTPSender {
	smtpCfg := cfg.SMTP
	if smtpCfg.Port == 0 {
		if smtpCfg.UseSSL {
			smtpCfg.Port = 465
		} else {
			smtpCfg.Port = 587
		}
	}
	appName := cfg.AppName
	if appName == "" {
		appName = "User Registry"
	}
	fromName := cfg.FromName
	if fromName == "" {
		fromName = appName
	}
	return &SMTPSender{
		config:       smtpCfg,
		fromAddress:  cfg.FromAddress,
		fromName:     fromName,
		appName:      appName,
		supportEmail: cfg.SupportEmail,
	}
}

func (s *SMTPSender) SendVerification(ctx context.Context, data VerificationEmailData) error {
	if data.AppName == "" {
		data.AppName = s.appName
	}
	msg, err := verificationEmail(data)
	if err != nil {
		return err
	}
	return s.SendEmail(ctx, msg)
}

func (s *SMTPSender) SendWelcome(ctx context.Context, data WelcomeEmailData) error {
	if data.AppName == "" {
		data.AppName = s.appName
	}
	msg, err := welcomeEmail(data)
	if err != nil {
		return err
	}
	return s.SendEmail(ctx, msg)
}

// SendPasswordReset sends a password reset email
func (s *SMTPSender) SendPasswordReset(ctx context.Context, data PasswordResetEmailData) error {
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
	return s.SendEmail(ctx, msg)
}

// SendEmail sends a generic email
func (s *SMTPSender) SendEmail(ctx context.Context, data EmailData) error {
	fromAddr := data.FromAddress
	if fromAddr == "" {
		fromAddr = s.fromAddress
	}
	fromName := data.FromName
	if fromName == "" {
		fromName = s.fromName
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Build email headers and body
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", fromName, fromAddr)
	headers["To"] = data.To
	headers["Subject"] = data.Subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/plain; charset=UTF-8"
	if data.ReplyTo != "" {
		headers["Reply-To"] = data.ReplyTo
	}

	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(data.TextBody)

	client, err := s.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()
	return s.transmit(client, data.To, msg.String())
}

// Health checks if the SMTP server is reachable
func (s *SMTPSender) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := s.dial(ctx, fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
	if err != nil {
		return err
	}
	return client.Close()
}

// ProviderType returns the provider type
func (s *SMTPSender) ProviderType() ProviderType {
	return ProviderTypeSMTP
}

// dial opens an SMTP session: implicit TLS when UseSSL is set, otherwise plain with an
// optional STARTTLS upgrade.
func (s *SMTPSender) dial(ctx context.Context, addr string) (*smtp.Client, error) {
	tlsConfig := &tls.Config{
		ServerName:         s.config.Host,
		InsecureSkipVerify: s.config.SkipVerify,
	}
	var conn net.Conn
	var err error
	if s.config.UseSSL {
		conn, err = (&tls.Dialer{Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if s.config.UseTLS && !s.config.UseSSL {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	return client, nil
}

func (s *SMTPSender) transmit(client *smtp.Client, to, message string) error {
	if s.config.Username != "" && s.config.Password != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	fromAddr := s.fromAddress
	if fromAddr == "" {
		fromAddr = s.config.Username
	}
	if err := client.Mail(fromAddr); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close email body: %w", err)
	}
	return client.Quit()
}
