package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/notification"
	"github.com/cipulse/cipulse-api/internal/repository"
)

type fakeInviteRepo struct {
	repository.InviteRepository

	created  *models.Invite
	byHash   map[string]models.Invite
	accepted []string
}

func (f *fakeInviteRepo) CreateInvite(invite models.Invite) (models.Invite, error) {
	invite.ID = "invite-1"
	invite.CreatedAt = time.Now()
	f.created = &invite
	return invite, nil
}

func (f *fakeInviteRepo) GetInviteByTokenHash(tokenHash string) (models.Invite, error) {
	invite, ok := f.byHash[tokenHash]
	if !ok {
		return models.Invite{}, repository.ErrInviteNotFound
	}
	return invite, nil
}

func (f *fakeInviteRepo) MarkInviteAccepted(inviteID string) (models.Invite, error) {
	f.accepted = append(f.accepted, inviteID)
	return models.Invite{ID: inviteID}, nil
}

type fakeTenantRepo struct {
	tenants map[string]models.Tenant
}

func (f *fakeTenantRepo) CreateTenant(name string) (models.Tenant, error) {
	return models.Tenant{ID: "tenant-new", Name: name}, nil
}

func (f *fakeTenantRepo) GetTenantByID(id string) (models.Tenant, error) {
	tenant, ok := f.tenants[id]
	if !ok {
		return models.Tenant{}, repository.ErrTenantNotFound
	}
	return tenant, nil
}

type failingMailer struct{ calls int }

func (m *failingMailer) SendInvite(recipientEmail, tenantName, inviteURL string) error {
	m.calls++
	return errors.New("smtp unreachable")
}

func adminRequest(method, target string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := authz.WithIdentity(r.Context(), "tenant-1", "user-1", []models.UserRole{models.RoleAdmin})
	return r.WithContext(ctx)
}

func newInviteFixture(invites *fakeInviteRepo, users *fakeUserRepo, mailer *failingMailer) *InviteHandler {
	tenants := &fakeTenantRepo{tenants: map[string]models.Tenant{
		"tenant-1": {ID: "tenant-1", Name: "Acme"},
	}}
	var m notification.InviteMailer
	if mailer != nil {
		m = mailer
	}
	return NewInviteHandler(invites, tenants, users, m, "", zerolog.Nop())
}

func TestCreateInviteSurvivesMailerFailure(t *testing.T) {
	invites := &fakeInviteRepo{}
	mailer := &failingMailer{}
	h := newInviteFixture(invites, &fakeUserRepo{}, mailer)

	body := strings.NewReader(`{"email":"New@Acme.Test","roles":["editor"]}`)
	rec := httptest.NewRecorder()
	h.CreateCurrentTenantInvite(rec, adminRequest(http.MethodPost, "/api/invites", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if mailer.calls != 1 {
		t.Fatalf("mailer calls = %d, want 1", mailer.calls)
	}

	var resp inviteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EmailSent {
		t.Fatal("email_sent = true, want false after mailer failure")
	}
	if resp.Token == "" {
		t.Fatal("token missing from response")
	}
	if resp.Email != "new@acme.test" {
		t.Fatalf("email = %q, want lowercased new@acme.test", resp.Email)
	}
	if invites.created == nil || invites.created.TokenHash != hashInviteToken(resp.Token) {
		t.Fatal("stored invite hash does not match returned token")
	}
	if resp.Status != "pending" {
		t.Fatalf("status = %q, want pending", resp.Status)
	}
}

func TestCreateInviteForeignTenantForbidden(t *testing.T) {
	h := newInviteFixture(&fakeInviteRepo{}, &fakeUserRepo{}, nil)

	body := strings.NewReader(`{"email":"new@acme.test"}`)
	r := adminRequest(http.MethodPost, "/api/tenants/tenant-2/invites", body)
	r = mux.SetURLVars(r, map[string]string{"tenantID": "tenant-2"})
	rec := httptest.NewRecorder()
	h.CreateInvite(rec, r)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAcceptInviteCreatesUser(t *testing.T) {
	token := "raw-invite-token"
	invites := &fakeInviteRepo{byHash: map[string]models.Invite{
		hashInviteToken(token): {
			ID:        "invite-1",
			TenantID:  "tenant-1",
			Email:     "new@acme.test",
			Roles:     []models.UserRole{models.RoleEditor},
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}}
	users := &fakeUserRepo{}
	h := newInviteFixture(invites, users, nil)

	body := strings.NewReader(`{"password":"hunter2hunter2"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/invites/"+token+"/accept", body)
	r = mux.SetURLVars(r, map[string]string{"token": token})
	rec := httptest.NewRecorder()
	h.AcceptInvite(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(users.created) != 1 || users.created[0].Email != "new@acme.test" {
		t.Fatalf("created users = %+v, want one for new@acme.test", users.created)
	}
	if len(invites.accepted) != 1 || invites.accepted[0] != "invite-1" {
		t.Fatalf("accepted = %v, want [invite-1]", invites.accepted)
	}
}

func TestAcceptInviteMergesRolesForExistingUser(t *testing.T) {
	token := "raw-invite-token"
	invites := &fakeInviteRepo{byHash: map[string]models.Invite{
		hashInviteToken(token): {
			ID:        "invite-1",
			TenantID:  "tenant-1",
			Email:     "dev@acme.test",
			Roles:     []models.UserRole{models.RoleAdmin},
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}}
	users := &fakeUserRepo{byEmail: map[string]models.User{
		"dev@acme.test": {ID: "user-1", TenantID: "tenant-1", IsActive: true, Roles: []models.UserRole{models.RoleViewer}},
	}}
	h := newInviteFixture(invites, users, nil)

	body := strings.NewReader(`{}`)
	r := httptest.NewRequest(http.MethodPost, "/api/invites/"+token+"/accept", body)
	r = mux.SetURLVars(r, map[string]string{"token": token})
	rec := httptest.NewRecorder()
	h.AcceptInvite(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	got := users.updated["user-1"]
	if len(got) != 2 || got[0] != models.RoleViewer || got[1] != models.RoleAdmin {
		t.Fatalf("merged roles = %v, want [viewer admin]", got)
	}
	if len(users.created) != 0 {
		t.Fatalf("created = %+v, want none", users.created)
	}
}

func TestPreviewExpiredInviteGone(t *testing.T) {
	token := "raw-invite-token"
	invites := &fakeInviteRepo{byHash: map[string]models.Invite{
		hashInviteToken(token): {
			ID:        "invite-1",
			TenantID:  "tenant-1",
			Email:     "new@acme.test",
			ExpiresAt: time.Now().Add(-time.Hour),
		},
	}}
	h := newInviteFixture(invites, &fakeUserRepo{}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/invites/"+token, nil)
	r = mux.SetURLVars(r, map[string]string{"token": token})
	rec := httptest.NewRecorder()
	h.PreviewInvite(rec, r)

	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusGone)
	}
}
