package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"FlowSentry/internal/config"
)

// EmailNotifier delivers alert emails over SMTP. It implements the
// model.Notifier interface.
type EmailNotifier struct {
	cfg        config.SMTPConfig
	auth       smtp.Auth
	addr       string
	recipients []string
}

// NewEmailNotifier creates a notifier for the configured SMTP account. The
// To field may list several recipients separated by commas.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	var recipients []string
	for _, r := range strings.Split(cfg.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &EmailNotifier{
		cfg:        cfg,
		auth:       smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		recipients: recipients,
	}
}

// Send delivers one HTML email to all configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	if len(n.recipients) == 0 {
		return fmt.Errorf("no notification recipients configured")
	}
	if err := smtp.SendMail(n.addr, n.auth, n.cfg.From, n.recipients, n.message(subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) message(subject, body string) []byte {
	var msg strings.Builder
	msg.WriteString("To: " + strings.Join(n.recipients, ", ") + "\r\n")
	msg.WriteString("From: " + n.cfg.From + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}
