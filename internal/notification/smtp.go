package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/cipulse/cipulse-api/internal/config"
)

// smtpSender holds the SMTP connection settings shared by the alert
// notifier and the invite mailer.
type smtpSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func newSMTPSender(cfg config.EmailConfig) (smtpSender, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	if host == "" {
		return smtpSender{}, fmt.Errorf("smtp_host is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return smtpSender{}, fmt.Errorf("email from address is required")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	return smtpSender{
		host:     host,
		port:     port,
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
		from:     from,
	}, nil
}

func (s smtpSender) sendPlainText(recipients []string, subject, body string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		s.from, strings.Join(recipients, ","), subject)
	message := []byte(headers + body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	return smtp.SendMail(addr, auth, s.from, recipients, message)
}
