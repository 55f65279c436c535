package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/repository"
)

type Event struct {
	TenantID string
	Event    models.NotificationEvent
	Severity models.NotificationSeverity
	Title    string
	Message  string
	Metadata map[string]interface{}
}

type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifyRunFailed(ctx context.Context, tenantID, buildID, buildName string, runID int64) error
	NotifyRunRecovered(ctx context.Context, tenantID, buildID, buildName string, runID int64) error
	NotifySyncCompleted(ctx context.Context, tenantID, buildID, buildName string, runsUpserted int) error
	NotifySyncFailed(ctx context.Context, tenantID, buildID, buildName, reason string) error
	ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, tenantID string) (int, error)
	MarkRead(ctx context.Context, tenantID, notificationID string) (models.Notification, error)
}

type service struct {
	repo      repository.NotificationRepository
	logger    zerolog.Logger
	notifiers []Notifier
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger, notifiers ...Notifier) Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &service{
		repo:      repo,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		notifiers: active,
	}
}

func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Event == "" {
		return models.Notification{}, fmt.Errorf("event type is required")
	}
	if evt.Severity == "" {
		evt.Severity = models.NotificationSeverityInfo
	}
	title := strings.TrimSpace(evt.Title)
	message := strings.TrimSpace(evt.Message)
	if title == "" {
		title = string(evt.Event)
	}
	params := repository.CreateNotificationParams{
		Event:    evt.Event,
		Severity: evt.Severity,
		Title:    title,
		Message:  message,
		Metadata: evt.Metadata,
	}
	if tid := strings.TrimSpace(evt.TenantID); tid != "" {
		params.TenantID = &tid
	}

	notif, err := s.repo.Create(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, notif); err != nil {
			logNotifyError(s.logger, err, notifierChannelName(notifier), notif)
		}
	}
	return notif, nil
}

func (s *service) NotifyRunFailed(ctx context.Context, tenantID, buildID, buildName string, runID int64) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required for run notifications")
	}
	name := fallbackName(buildName, buildID)
	_, err := s.Publish(ctx, Event{
		TenantID: tenantID,
		Event:    models.NotificationEventRunFailed,
		Severity: models.NotificationSeverityError,
		Title:    fmt.Sprintf("Build failing: %s", name),
		Message:  fmt.Sprintf("The latest workflow run for %s failed.", name),
		Metadata: map[string]interface{}{
			"build_id": buildID,
			"build":    name,
			"run_id":   runID,
		},
	})
	return err
}

func (s *service) NotifyRunRecovered(ctx context.Context, tenantID, buildID, buildName string, runID int64) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required for run notifications")
	}
	name := fallbackName(buildName, buildID)
	_, err := s.Publish(ctx, Event{
		TenantID: tenantID,
		Event:    models.NotificationEventRunRecovered,
		Severity: models.NotificationSeverityInfo,
		Title:    fmt.Sprintf("Build recovered: %s", name),
		Message:  fmt.Sprintf("Workflow runs for %s are passing again.", name),
		Metadata: map[string]interface{}{
			"build_id": buildID,
			"build":    name,
			"run_id":   runID,
		},
	})
	return err
}

func (s *service) NotifySyncCompleted(ctx context.Context, tenantID, buildID, buildName string, runsUpserted int) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required for sync notifications")
	}
	name := fallbackName(buildName, buildID)
	_, err := s.Publish(ctx, Event{
		TenantID: tenantID,
		Event:    models.NotificationEventSyncCompleted,
		Severity: models.NotificationSeverityInfo,
		Title:    fmt.Sprintf("Sync completed: %s", name),
		Message:  fmt.Sprintf("Synced %d workflow runs for %s.", runsUpserted, name),
		Metadata: map[string]interface{}{
			"build_id":      buildID,
			"build":         name,
			"runs_upserted": runsUpserted,
		},
	})
	return err
}

func (s *service) NotifySyncFailed(ctx context.Context, tenantID, buildID, buildName, reason string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required for sync notifications")
	}
	name := fallbackName(buildName, buildID)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Unknown error"
	}
	_, err := s.Publish(ctx, Event{
		TenantID: tenantID,
		Event:    models.NotificationEventSyncFailed,
		Severity: models.NotificationSeverityWarning,
		Title:    fmt.Sprintf("Sync failed: %s", name),
		Message:  fmt.Sprintf("Run sync for %s failed: %s", name, reason),
		Metadata: map[string]interface{}{
			"build_id": buildID,
			"build":    name,
			"reason":   reason,
		},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, tenantID, limit)
}

func (s *service) CountUnread(ctx context.Context, tenantID string) (int, error) {
	return s.repo.CountUnread(ctx, tenantID)
}

func (s *service) MarkRead(ctx context.Context, tenantID, notificationID string) (models.Notification, error) {
	return s.repo.MarkRead(ctx, tenantID, notificationID)
}

func fallbackName(name, fallback string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return fallback
}

func notifierChannelName(n Notifier) string {
	type named interface {
		String() string
	}
	if v, ok := n.(named); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
