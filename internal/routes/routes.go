package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/handlers"
	"github.com/cipulse/cipulse-api/internal/models"
)

// NewRouter sets up the API routes. Everything under /api except auth and
// invite acceptance requires a valid JWT; mutating endpoints additionally
// require a role tier.
func NewRouter(
	auth *handlers.AuthHandler,
	build *handlers.BuildHandler,
	token *handlers.TokenHandler,
	tenant *handlers.TenantHandler,
	invite *handlers.InviteHandler,
	notif *handlers.NotificationHandler,
	health *handlers.HealthHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health checks
	router.HandleFunc("/health", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/ready", health.Readiness).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Public invite flow
	router.HandleFunc("/api/invites/{token}", invite.PreviewInvite).Methods(http.MethodGet)
	router.HandleFunc("/api/invites/{token}/accept", invite.AcceptInvite).Methods(http.MethodPost)

	// Authenticated API
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	editor := authz.RequireRole(models.RoleEditor)
	admin := authz.RequireRole(models.RoleAdmin)
	superAdmin := authz.RequireRole(models.RoleSuperAdmin)

	// Builds
	api.Handle("/builds", editor(http.HandlerFunc(build.Create))).Methods(http.MethodPost)
	api.HandleFunc("/builds", build.List).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}", build.Get).Methods(http.MethodGet)
	api.Handle("/builds/{id}", editor(http.HandlerFunc(build.Delete))).Methods(http.MethodDelete)
	api.HandleFunc("/builds/{id}/stats", build.GetStatistics).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}/stats/live", build.GetLiveStatistics).Methods(http.MethodGet)
	api.Handle("/builds/{id}/sync", editor(http.HandlerFunc(build.TriggerSync))).Methods(http.MethodPost)

	// Saved tokens
	api.Handle("/tokens", editor(http.HandlerFunc(token.Create))).Methods(http.MethodPost)
	api.HandleFunc("/tokens", token.List).Methods(http.MethodGet)
	api.Handle("/tokens/{id}", editor(http.HandlerFunc(token.Delete))).Methods(http.MethodDelete)

	// Tenant administration
	api.Handle("/tenants", superAdmin(http.HandlerFunc(tenant.CreateTenant))).Methods(http.MethodPost)
	api.Handle("/tenants/{tenantID}/users", admin(http.HandlerFunc(tenant.ListUsers))).Methods(http.MethodGet)
	api.Handle("/tenants/{tenantID}/users", admin(http.HandlerFunc(tenant.AddUser))).Methods(http.MethodPost)
	api.Handle("/tenants/{tenantID}/invites", superAdmin(http.HandlerFunc(invite.CreateInvite))).Methods(http.MethodPost)
	api.Handle("/invites", admin(http.HandlerFunc(invite.CreateCurrentTenantInvite))).Methods(http.MethodPost)

	// Notifications
	api.HandleFunc("/notifications", notif.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}/read", notif.MarkRead).Methods(http.MethodPost)

	return router
}
