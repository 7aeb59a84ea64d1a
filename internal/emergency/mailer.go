package emergency

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// ErrNoRecipient is returned when a property has no manager email.
var ErrNoRecipient = errors.New("emergency: property has no manager email")

// Mailer delivers plain-text alert emails.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail over SMTP. Port 465 uses implicit TLS, any other
// port upgrades with STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a new SMTP mailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return ErrNoRecipient
	}

	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	dialer := &net.Dialer{}
	var conn net.Conn
	var err error
	if m.cfg.Port == "465" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: m.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if m.cfg.Port != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if m.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(m.cfg.From, to, subject, body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			strings.ReplaceAll(body, "\n", "\r\n"),
	)
}

// ComposeAlert builds the subject and body of a manager alert.
func ComposeAlert(propertyName string, details models.EmergencyDetails) (subject, body string) {
	subject = "EMERGENCY ALERT - " + propertyName

	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY ALERT - %s\n\n", propertyName)
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(details.Severity))
	fmt.Fprintf(&b, "Message: %s\n", details.Message)
	fmt.Fprintf(&b, "Detected Keywords: %s\n\n", strings.Join(details.DetectedKeywords, ", "))
	b.WriteString("Please take immediate action if necessary.\n\n")
	b.WriteString("This is an automated message from your property management system.\n")
	return subject, b.String()
}

// AlertTitle is the short push title for a severity.
func AlertTitle(severity string) string {
	switch severity {
	case models.SeverityImmediate:
		return "🚨 IMMEDIATE EMERGENCY"
	case models.SeverityUrgent:
		return "⚠️ URGENT ALERT"
	default:
		return "ℹ️ Emergency Alert"
	}
}
