package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/config"
	"github.com/cipulse/cipulse-api/internal/models"
)

type EmailNotifier struct {
	sender     smtpSender
	recipients []string
	logger     zerolog.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, logger zerolog.Logger) (*EmailNotifier, error) {
	sender, err := newSMTPSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("email notifier: %w", err)
	}

	return &EmailNotifier{
		sender:     sender,
		recipients: sanitizeRecipients(cfg.AlertRecipients),
		logger:     logger.With().Str("notifier", "email").Logger(),
	}, nil
}

func (n *EmailNotifier) Notify(_ context.Context, notif models.Notification) error {
	if len(n.recipients) == 0 {
		return nil
	}

	if err := n.sender.sendPlainText(n.recipients, alertSubject(notif), alertBody(notif)); err != nil {
		return err
	}

	n.logger.Info().
		Str("notification_id", notif.ID).
		Str("event_type", string(notif.EventType)).
		Strs("recipients", n.recipients).
		Msg("email notification sent")
	return nil
}

func (n *EmailNotifier) String() string {
	return "EmailNotifier"
}

func alertSubject(notif models.Notification) string {
	title := strings.TrimSpace(notif.Title)
	if title == "" {
		title = "Notification"
	}
	switch notif.EventType {
	case models.NotificationEventRunFailed:
		return "[CIPulse] BUILD FAILED: " + title
	case models.NotificationEventRunRecovered:
		return "[CIPulse] Build recovered: " + title
	case models.NotificationEventSyncFailed:
		return "[CIPulse] Sync failed: " + title
	default:
		return "[CIPulse] " + title
	}
}

func alertBody(notif models.Notification) string {
	body := strings.Builder{}
	body.WriteString(strings.TrimSpace(notif.Message))
	body.WriteString("\n\n")

	switch notif.EventType {
	case models.NotificationEventRunFailed:
		body.WriteString("The latest workflow run on a monitored branch did not pass. Check the build dashboard for the failing run.\n\n")
	case models.NotificationEventRunRecovered:
		body.WriteString("The monitored branch is passing again. No action needed.\n\n")
	case models.NotificationEventSyncFailed:
		body.WriteString("The background sync could not reach GitHub for this build. Stored statistics may be stale until the next successful sync.\n\n")
	}

	body.WriteString(fmt.Sprintf("Event: %s\n", notif.EventType))
	body.WriteString(fmt.Sprintf("Severity: %s\n", notif.Severity))
	body.WriteString(fmt.Sprintf("Created: %s\n", notif.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	if len(notif.Metadata) > 0 {
		body.WriteString(fmt.Sprintf("Details: %s\n", string(notif.Metadata)))
	}
	return body.String()
}
