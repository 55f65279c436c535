package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/config"
	"github.com/cipulse/cipulse-api/internal/models"
)

// FirebaseNotifier publishes alert events to an FCM topic. Delivery is
// logged only until push credentials are provisioned.
type FirebaseNotifier struct {
	enabled   bool
	projectID string
	topic     string
	logger    zerolog.Logger
}

func NewFirebaseNotifier(cfg config.FirebaseConfig, logger zerolog.Logger) *FirebaseNotifier {
	enabled := cfg.Enabled && cfg.ProjectID != "" && cfg.Topic != ""
	return &FirebaseNotifier{
		enabled:   enabled,
		projectID: cfg.ProjectID,
		topic:     cfg.Topic,
		logger:    logger.With().Str("notifier", "firebase").Logger(),
	}
}

func (n *FirebaseNotifier) Notify(_ context.Context, notif models.Notification) error {
	if !n.enabled {
		return nil
	}

	payload := map[string]string{
		"event_type": string(notif.EventType),
		"severity":   string(notif.Severity),
		"title":      notif.Title,
		"message":    notif.Message,
	}
	if notif.TenantID != nil {
		payload["tenant_id"] = *notif.TenantID
	}

	n.logger.Info().
		Str("notification_id", notif.ID).
		Str("topic", n.topic).
		Fields(map[string]interface{}{"payload": payload}).
		Msg("firebase notification dispatched (mock)")
	return nil
}

func (n *FirebaseNotifier) String() string {
	if !n.enabled {
		return "FirebaseNotifier(disabled)"
	}
	return fmt.Sprintf("FirebaseNotifier(project=%s, topic=%s)", n.projectID, n.topic)
}
