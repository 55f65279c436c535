package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/notification"
	"github.com/cipulse/cipulse-api/internal/repository"
)

const (
	defaultInviteTTL = 7 * 24 * time.Hour
	maxInviteTTL     = 30 * 24 * time.Hour
)

type InviteHandler struct {
	invites repository.InviteRepository
	tenants repository.TenantRepository
	users   repository.UserRepository
	mailer  notification.InviteMailer
	urlTpl  string
	logger  zerolog.Logger
}

type inviteRequest struct {
	Email          string   `json:"email"`
	Roles          []string `json:"roles"`
	ExpiresInHours *int     `json:"expires_in_hours"`
}

type inviteResponse struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenant_id"`
	Email     string            `json:"email"`
	Roles     []models.UserRole `json:"roles"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Status    string            `json:"status"`
	EmailSent bool              `json:"email_sent"`
}

func NewInviteHandler(
	invites repository.InviteRepository,
	tenants repository.TenantRepository,
	users repository.UserRepository,
	mailer notification.InviteMailer,
	inviteURLTemplate string,
	logger zerolog.Logger,
) *InviteHandler {
	if inviteURLTemplate == "" {
		inviteURLTemplate = "https://app.cipulse.dev/invite/accept?token=%s"
	}
	return &InviteHandler{
		invites: invites,
		tenants: tenants,
		users:   users,
		mailer:  mailer,
		urlTpl:  inviteURLTemplate,
		logger:  logger.With().Str("handler", "invite").Logger(),
	}
}

// CreateInvite issues an invite for the tenant named in the path. Super
// admins may target any tenant; everyone else only their own.
func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]
	if tenantID == "" {
		http.Error(w, "tenant id is required", http.StatusBadRequest)
		return
	}

	requesterRoles, _ := authz.RolesFromRequest(r)
	if !models.HasAtLeast(requesterRoles, models.RoleSuperAdmin) {
		if tid, ok := authz.TenantIDFromRequest(r); !ok || tid != tenantID {
			http.Error(w, "insufficient permissions for tenant", http.StatusForbidden)
			return
		}
	}

	h.issueInvite(w, r, tenantID)
}

// CreateCurrentTenantInvite issues an invite for the caller's own tenant.
func (h *InviteHandler) CreateCurrentTenantInvite(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok || tenantID == "" {
		http.Error(w, "tenant context missing", http.StatusForbidden)
		return
	}

	h.issueInvite(w, r, tenantID)
}

func (h *InviteHandler) issueInvite(w http.ResponseWriter, r *http.Request, tenantID string) {
	tenant, err := h.tenants.GetTenantByID(tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to load tenant")
		http.Error(w, "failed to load tenant", http.StatusInternalServerError)
		return
	}

	var payload inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(strings.ToLower(payload.Email))
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	roles, ok := parseRequestedRoles(payload.Roles, "")
	if !ok {
		http.Error(w, "invalid roles", http.StatusBadRequest)
		return
	}

	ttl := defaultInviteTTL
	if payload.ExpiresInHours != nil {
		requested := time.Duration(*payload.ExpiresInHours) * time.Hour
		if requested <= 0 || requested > maxInviteTTL {
			http.Error(w, "expires_in_hours must be between 1 and 720", http.StatusBadRequest)
			return
		}
		ttl = requested
	}

	token, err := generateInviteToken()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate invite token")
		http.Error(w, "failed to generate invite token", http.StatusInternalServerError)
		return
	}

	var createdBy *string
	if uid, ok := authz.UserIDFromRequest(r); ok {
		createdBy = &uid
	}

	invite, err := h.invites.CreateInvite(models.Invite{
		TenantID:  tenant.ID,
		Email:     email,
		Roles:     roles,
		TokenHash: hashInviteToken(token),
		ExpiresAt: time.Now().Add(ttl),
		CreatedBy: createdBy,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("failed to create invite")
		http.Error(w, "failed to create invite", http.StatusInternalServerError)
		return
	}

	// A mail failure does not void the invite; the caller still gets the
	// token and can deliver it out of band.
	emailSent := false
	if h.mailer != nil {
		inviteURL := fmt.Sprintf(h.urlTpl, token)
		if err := h.mailer.SendInvite(invite.Email, tenant.Name, inviteURL); err != nil {
			h.logger.Warn().Err(err).Str("invite_id", invite.ID).Msg("failed to send invite email")
		} else {
			emailSent = true
		}
	}

	writeJSON(w, http.StatusCreated, inviteResponse{
		ID:        invite.ID,
		TenantID:  invite.TenantID,
		Email:     invite.Email,
		Roles:     invite.Roles,
		Token:     token,
		ExpiresAt: invite.ExpiresAt,
		Status:    invite.Status(time.Now()),
		EmailSent: emailSent,
	})
}

func (h *InviteHandler) PreviewInvite(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	invite, ok := h.loadOpenInvite(w, token)
	if !ok {
		return
	}

	tenant, err := h.tenants.GetTenantByID(invite.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("tenant_id", invite.TenantID).Msg("failed to load tenant")
		http.Error(w, "failed to load tenant", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Email      string            `json:"email"`
		TenantID   string            `json:"tenant_id"`
		TenantName string            `json:"tenant_name"`
		Roles      []models.UserRole `json:"roles"`
		ExpiresAt  time.Time         `json:"expires_at"`
		Status     string            `json:"status"`
	}{
		Email:      invite.Email,
		TenantID:   invite.TenantID,
		TenantName: tenant.Name,
		Roles:      invite.Roles,
		ExpiresAt:  invite.ExpiresAt,
		Status:     invite.Status(time.Now()),
	})
}

func (h *InviteHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	invite, ok := h.loadOpenInvite(w, token)
	if !ok {
		return
	}

	existingUser, err := h.users.GetUserByEmail(invite.Email)
	switch {
	case err == nil:
		if existingUser.TenantID != invite.TenantID {
			http.Error(w, "user already belongs to a different tenant", http.StatusConflict)
			return
		}
		if !existingUser.IsActive {
			http.Error(w, "user is inactive", http.StatusConflict)
			return
		}
		merged := models.EnsureDefaultRole(models.NormalizeRoles(append(existingUser.Roles, invite.Roles...)))
		if _, err := h.users.UpdateUserRoles(existingUser.ID, merged); err != nil {
			h.logger.Error().Err(err).Str("user_id", existingUser.ID).Msg("failed to update user roles")
			http.Error(w, "failed to update user roles", http.StatusInternalServerError)
			return
		}
	case errors.Is(err, repository.ErrUserNotFound):
		password := strings.TrimSpace(payload.Password)
		if password == "" {
			http.Error(w, "password is required", http.StatusBadRequest)
			return
		}
		if _, err := h.users.CreateUser(invite.TenantID, invite.Email, password, "", "", invite.Roles); err != nil {
			h.logger.Error().Err(err).Str("tenant_id", invite.TenantID).Msg("failed to create user from invite")
			http.Error(w, "failed to create user", http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Error().Err(err).Msg("failed to load user")
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	if _, err := h.invites.MarkInviteAccepted(invite.ID); err != nil {
		if errors.Is(err, repository.ErrInviteNotFound) {
			http.Error(w, "invite no longer valid", http.StatusGone)
			return
		}
		h.logger.Error().Err(err).Str("invite_id", invite.ID).Msg("failed to finalize invite")
		http.Error(w, "failed to finalize invite", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadOpenInvite fetches the invite for a raw token and rejects used or
// expired ones, writing the error response itself.
func (h *InviteHandler) loadOpenInvite(w http.ResponseWriter, token string) (models.Invite, bool) {
	invite, err := h.invites.GetInviteByTokenHash(hashInviteToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrInviteNotFound) {
			http.Error(w, "invite not found", http.StatusNotFound)
			return models.Invite{}, false
		}
		h.logger.Error().Err(err).Msg("failed to load invite")
		http.Error(w, "failed to load invite", http.StatusInternalServerError)
		return models.Invite{}, false
	}

	if invite.IsUsed() {
		http.Error(w, "invite already accepted", http.StatusConflict)
		return models.Invite{}, false
	}
	if invite.IsExpired(time.Now()) {
		http.Error(w, "invite expired", http.StatusGone)
		return models.Invite{}, false
	}
	return invite, true
}

func generateInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashInviteToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
