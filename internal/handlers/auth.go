package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/repository"
)

const (
	sessionTTL        = 24 * time.Hour
	minPasswordLength = 8
)

type AuthHandler struct {
	users     repository.UserRepository
	jwtSecret []byte
	logger    zerolog.Logger
}

func NewAuthHandler(users repository.UserRepository, jwtSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		logger:    logger.With().Str("handler", "auth").Logger(),
	}
}

type credentials struct {
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (c *credentials) normalize() {
	c.TenantID = strings.TrimSpace(c.TenantID)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
}

// SignUp registers a viewer account on an existing tenant. Role upgrades go
// through the invite or tenant administration endpoints.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.normalize()

	if req.TenantID == "" || req.Email == "" {
		http.Error(w, "tenant_id and email are required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < minPasswordLength {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	user, err := h.users.CreateUser(req.TenantID, req.Email, req.Password, req.FirstName, req.LastName, []models.UserRole{models.RoleViewer})
	if err != nil {
		http.Error(w, "Failed to create user: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, models.User{
		ID:       user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		Roles:    user.Roles,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.normalize()

	user, err := h.users.AuthenticateUser(req.Email, req.Password)
	if err != nil {
		http.Error(w, "Authentication failed: "+err.Error(), http.StatusUnauthorized)
		return
	}

	signed, expiresAt, err := h.issueToken(user)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to sign session token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      signed,
		"expires_at": expiresAt,
	})
}

func (h *AuthHandler) issueToken(user models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(sessionTTL)

	rolesClaim := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		rolesClaim = append(rolesClaim, string(role))
	}

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"tid":   user.TenantID,
		"role":  string(models.HighestRole(user.Roles)),
		"roles": rolesClaim,
		"exp":   expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	return signed, expiresAt, err
}

func (h *AuthHandler) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			http.Error(w, "Bearer token required", http.StatusUnauthorized)
			return
		}

		parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		})
		if err != nil || !parsed.Valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return
		}

		tenantID, _ := claims["tid"].(string)
		if tenantID == "" {
			http.Error(w, "Missing tenant claim", http.StatusUnauthorized)
			return
		}
		roles, ok := rolesFromClaims(claims)
		if !ok {
			http.Error(w, "Missing role claim", http.StatusUnauthorized)
			return
		}
		userID, _ := claims["sub"].(string)

		ctx := authz.WithIdentity(r.Context(), tenantID, userID, roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// rolesFromClaims reads the roles claim, falling back to the legacy single
// "role" claim. Tokens round-trip through JSON so list claims arrive as
// []interface{}.
func rolesFromClaims(claims jwt.MapClaims) ([]models.UserRole, bool) {
	var roles []models.UserRole
	switch v := claims["roles"].(type) {
	case []interface{}:
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			roles = append(roles, models.UserRole(str))
		}
	case string:
		roles = []models.UserRole{models.UserRole(v)}
	default:
		single, ok := claims["role"].(string)
		if !ok || single == "" {
			return nil, false
		}
		roles = []models.UserRole{models.UserRole(single)}
	}

	if !models.IsValidRoleList(roles) {
		return nil, false
	}
	return models.EnsureDefaultRole(models.NormalizeRoles(roles)), true
}
