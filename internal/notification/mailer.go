package notification

import (
	"fmt"
	"strings"

	"github.com/cipulse/cipulse-api/internal/config"
)

// InviteMailer is responsible for delivering tenant invite emails.
type InviteMailer interface {
	SendInvite(recipientEmail, tenantName, inviteURL string) error
}

// SMTPInviteMailer sends invite emails using an SMTP server.
type SMTPInviteMailer struct {
	sender smtpSender
}

// NewSMTPInviteMailer constructs a new SMTPInviteMailer from config.
func NewSMTPInviteMailer(cfg config.EmailConfig) (*SMTPInviteMailer, error) {
	sender, err := newSMTPSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("invite mailer: %w", err)
	}
	return &SMTPInviteMailer{sender: sender}, nil
}

// SendInvite dispatches an invitation email to a prospective user.
func (m *SMTPInviteMailer) SendInvite(recipientEmail, tenantName, inviteURL string) error {
	subject := fmt.Sprintf("You have been invited to join %s", tenantName)

	body := strings.Builder{}
	body.WriteString("Hello,\n\n")
	body.WriteString(fmt.Sprintf("You've been invited to join the %s workspace on CIPulse.\n", tenantName))
	body.WriteString("Click the link below to accept the invitation and create your account:\n\n")
	body.WriteString(inviteURL + "\n\n")
	body.WriteString("This invite is valid for a limited time. If you did not expect this email, you can ignore it.\n\n")
	body.WriteString("Thanks,\nThe CIPulse Team\n")

	return m.sender.sendPlainText([]string{recipientEmail}, subject, body.String())
}
