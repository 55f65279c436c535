package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/repository"
)

type TenantHandler struct {
	tenants repository.TenantRepository
	users   repository.UserRepository
	logger  zerolog.Logger
}

func NewTenantHandler(tenants repository.TenantRepository, users repository.UserRepository, logger zerolog.Logger) *TenantHandler {
	return &TenantHandler{
		tenants: tenants,
		users:   users,
		logger:  logger.With().Str("handler", "tenant").Logger(),
	}
}

func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		http.Error(w, "Tenant name is required", http.StatusBadRequest)
		return
	}

	tenant, err := h.tenants.CreateTenant(payload.Name)
	if err != nil {
		if errors.Is(err, repository.ErrTenantExists) {
			http.Error(w, "Tenant name already exists", http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Str("name", payload.Name).Msg("failed to create tenant")
		http.Error(w, "Failed to create tenant", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, tenant)
}

// ListUsers returns the active users of a tenant. Password hashes are never
// serialized; the model excludes the field from JSON.
func (h *TenantHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.resolveTenantID(w, r)
	if !ok {
		return
	}

	users, err := h.users.ListUsersByTenant(tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to list users")
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *TenantHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	requesterRoles, _ := authz.RolesFromRequest(r)
	isSuperAdmin := models.HasAtLeast(requesterRoles, models.RoleSuperAdmin)

	tenantID, ok := h.resolveTenantID(w, r)
	if !ok {
		return
	}

	if _, err := h.tenants.GetTenantByID(tenantID); err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to load tenant")
		http.Error(w, "Failed to load tenant", http.StatusInternalServerError)
		return
	}

	var payload struct {
		Email     string   `json:"email"`
		Password  string   `json:"password"`
		FirstName string   `json:"first_name"`
		LastName  string   `json:"last_name"`
		Role      string   `json:"role"`
		Roles     []string `json:"roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	roles, ok := parseRequestedRoles(payload.Roles, payload.Role)
	if !ok {
		http.Error(w, "Invalid roles", http.StatusBadRequest)
		return
	}
	if !isSuperAdmin && models.HasAtLeast(roles, models.RoleSuperAdmin) {
		http.Error(w, "insufficient permissions to assign role", http.StatusForbidden)
		return
	}

	user, err := h.users.CreateUser(tenantID, payload.Email, payload.Password, payload.FirstName, payload.LastName, roles)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, "User already exists", http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, models.User{
		ID:       user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		IsActive: user.IsActive,
		Roles:    user.Roles,
	})
}

// resolveTenantID reads the tenant from the path and enforces that
// non-super-admins only touch their own tenant. Writes the error response
// itself when the check fails.
func (h *TenantHandler) resolveTenantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := mux.Vars(r)["tenantID"]
	if tenantID == "" {
		http.Error(w, "Tenant ID is required", http.StatusBadRequest)
		return "", false
	}

	requesterRoles, _ := authz.RolesFromRequest(r)
	if models.HasAtLeast(requesterRoles, models.RoleSuperAdmin) {
		return tenantID, true
	}
	if tid, ok := authz.TenantIDFromRequest(r); !ok || tid != tenantID {
		http.Error(w, "insufficient permissions for tenant", http.StatusForbidden)
		return "", false
	}
	return tenantID, true
}

// parseRequestedRoles accepts either a roles list or the single legacy role
// field, defaulting to viewer when both are absent.
func parseRequestedRoles(list []string, single string) ([]models.UserRole, bool) {
	var roles []models.UserRole
	switch {
	case len(list) > 0:
		for _, roleStr := range list {
			roles = append(roles, models.UserRole(strings.ToLower(strings.TrimSpace(roleStr))))
		}
	case single != "":
		roles = []models.UserRole{models.UserRole(strings.ToLower(strings.TrimSpace(single)))}
	default:
		roles = []models.UserRole{models.RoleViewer}
	}
	roles = models.NormalizeRoles(roles)
	if !models.IsValidRoleList(roles) {
		return nil, false
	}
	return roles, true
}
