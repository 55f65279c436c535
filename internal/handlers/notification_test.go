package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/notification"
	"github.com/cipulse/cipulse-api/internal/repository"
)

type fakeNotificationService struct {
	recent      []models.Notification
	unread      int
	marked      models.Notification
	markReadErr error
	lastLimit   int
}

func (f *fakeNotificationService) Publish(ctx context.Context, evt notification.Event) (models.Notification, error) {
	return models.Notification{}, nil
}

func (f *fakeNotificationService) NotifyRunFailed(ctx context.Context, tenantID, buildID, buildName string, runID int64) error {
	return nil
}

func (f *fakeNotificationService) NotifyRunRecovered(ctx context.Context, tenantID, buildID, buildName string, runID int64) error {
	return nil
}

func (f *fakeNotificationService) NotifySyncCompleted(ctx context.Context, tenantID, buildID, buildName string, runsUpserted int) error {
	return nil
}

func (f *fakeNotificationService) NotifySyncFailed(ctx context.Context, tenantID, buildID, buildName, reason string) error {
	return nil
}

func (f *fakeNotificationService) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Notification, error) {
	f.lastLimit = limit
	return f.recent, nil
}

func (f *fakeNotificationService) CountUnread(ctx context.Context, tenantID string) (int, error) {
	return f.unread, nil
}

func (f *fakeNotificationService) MarkRead(ctx context.Context, tenantID, notificationID string) (models.Notification, error) {
	if f.markReadErr != nil {
		return models.Notification{}, f.markReadErr
	}
	return f.marked, nil
}

func authedRequest(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	ctx := authz.WithIdentity(r.Context(), "tenant-1", "user-1", []models.UserRole{models.RoleViewer})
	return r.WithContext(ctx)
}

func TestNotificationListWritesFeed(t *testing.T) {
	svc := &fakeNotificationService{
		recent: []models.Notification{
			{ID: "n1", EventType: models.NotificationEventRunFailed, Severity: models.NotificationSeverityError, Title: "Build failing: api"},
		},
		unread: 3,
	}
	h := NewNotificationHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/notifications?limit=5"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	if svc.lastLimit != 5 {
		t.Fatalf("limit = %d, want 5", svc.lastLimit)
	}

	var body struct {
		Notifications []models.Notification `json:"notifications"`
		UnreadCount   int                   `json:"unread_count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Notifications) != 1 || body.Notifications[0].ID != "n1" {
		t.Fatalf("notifications = %+v, want one entry n1", body.Notifications)
	}
	if body.UnreadCount != 3 {
		t.Fatalf("unread_count = %d, want 3", body.UnreadCount)
	}
}

func TestNotificationListRequiresTenant(t *testing.T) {
	h := NewNotificationHandler(&fakeNotificationService{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestNotificationMarkRead(t *testing.T) {
	svc := &fakeNotificationService{marked: models.Notification{ID: "n1"}}
	h := NewNotificationHandler(svc, zerolog.Nop())

	r := authedRequest(http.MethodPost, "/api/notifications/n1/read")
	r = mux.SetURLVars(r, map[string]string{"notificationID": "n1"})
	rec := httptest.NewRecorder()
	h.MarkRead(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got models.Notification
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "n1" {
		t.Fatalf("id = %q, want n1", got.ID)
	}
}

func TestNotificationMarkReadNotFound(t *testing.T) {
	svc := &fakeNotificationService{markReadErr: repository.ErrNotificationNotFound}
	h := NewNotificationHandler(svc, zerolog.Nop())

	r := authedRequest(http.MethodPost, "/api/notifications/missing/read")
	r = mux.SetURLVars(r, map[string]string{"notificationID": "missing"})
	rec := httptest.NewRecorder()
	h.MarkRead(rec, r)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
