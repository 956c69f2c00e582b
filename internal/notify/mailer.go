package notify

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	User string `mapstructure:"user" yaml:"user"`
	Pass string `mapstructure:"pass" yaml:"-" json:"-"`
	From string `mapstructure:"from" yaml:"from"`
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// Mailer delivers plain-text notifications. In dev mode, or when SMTP is
// not configured, messages are logged instead of sent.
type Mailer struct {
	config  SMTPConfig
	devMode bool
}

// NewMailer creates a mailer.
func NewMailer(config SMTPConfig, devMode bool) *Mailer {
	return &Mailer{config: config, devMode: devMode}
}

// Send delivers one message.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func (m *Mailer) Send(to []string, subject, body string) error {
	if m.devMode || !m.config.IsConfigured() {
		slog.Info("notification (not sent)", "to", strings.Join(to, ", "), "subject", subject)
		slog.Debug("notification body", "body", body)
		return nil
	}

	msg := buildEmail(m.config.From, to, subject, body)
	addr := m.config.Host + ":" + m.config.Port

	if m.config.Port == "465" {
		return m.sendImplicitTLS(addr, to, msg)
	}
	return m.sendSTARTTLS(addr, to, msg)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func (m *Mailer) sendImplicitTLS(addr string, to []string, msg []byte) (err error) {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.config.Host})
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil && err == nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if m.config.User != "" {
		if err := c.Auth(smtp.PlainAuth("", m.config.User, m.config.Pass, m.config.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(m.config.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func (m *Mailer) sendSTARTTLS(addr string, to []string, msg []byte) error {
	var auth smtp.Auth
	if m.config.User != "" {
		auth = smtp.PlainAuth("", m.config.User, m.config.Pass, m.config.Host)
	}

	if err := smtp.SendMail(addr, auth, m.config.From, to, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func buildEmail(from string, to []string, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}
