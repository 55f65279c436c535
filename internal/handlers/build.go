package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	tc "go.temporal.io/sdk/client"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/repository"
	"github.com/cipulse/cipulse-api/internal/stats"
	"github.com/cipulse/cipulse-api/internal/temporal"
	"github.com/cipulse/cipulse-api/internal/temporal/workflows"
	"github.com/cipulse/cipulse-api/internal/token"
)

type BuildHandler struct {
	repo           repository.BuildRepository
	statsService   *stats.Service
	temporalClient tc.Client
	logger         zerolog.Logger
}

func NewBuildHandler(repo repository.BuildRepository, statsService *stats.Service, temporalClient tc.Client, logger zerolog.Logger) *BuildHandler {
	return &BuildHandler{
		repo:           repo,
		statsService:   statsService,
		temporalClient: temporalClient,
		logger:         logger.With().Str("component", "build_handler").Logger(),
	}
}

type buildRequest struct {
	Name         string            `json:"name"`
	Organization string            `json:"organization"`
	Repository   string            `json:"repository"`
	Selectors    []models.Selector `json:"selectors"`
	SavedTokenID *string           `json:"saved_token_id"`
	InlineToken  *string           `json:"inline_token"`
}

func (p *buildRequest) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(p.Organization) == "" || strings.TrimSpace(p.Repository) == "" {
		return errors.New("organization and repository are required")
	}
	if len(p.Selectors) == 0 {
		return errors.New("at least one selector is required")
	}
	for _, sel := range p.Selectors {
		if !models.IsValidSelectorKind(sel.Kind) {
			return fmt.Errorf("unknown selector kind %q", sel.Kind)
		}
		if strings.TrimSpace(sel.Pattern) == "" {
			return errors.New("selector pattern must not be empty")
		}
	}
	saved := p.SavedTokenID != nil && strings.TrimSpace(*p.SavedTokenID) != ""
	inline := p.InlineToken != nil && strings.TrimSpace(*p.InlineToken) != ""
	if saved == inline {
		return errors.New("exactly one of saved_token_id or inline_token must be set")
	}
	return nil
}

func (h *BuildHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	var payload buildRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := payload.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	build := models.Build{
		TenantID:     tid,
		Name:         payload.Name,
		Organization: payload.Organization,
		Repository:   payload.Repository,
		Selectors:    payload.Selectors,
		SavedTokenID: payload.SavedTokenID,
		InlineToken:  payload.InlineToken,
	}
	created, err := h.repo.CreateBuild(build)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create build")
		http.Error(w, "Failed to create build: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *BuildHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	builds, err := h.repo.ListBuilds(tid)
	if err != nil {
		http.Error(w, "Failed to list builds: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, builds)
}

func (h *BuildHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]
	build, err := h.repo.GetBuildByID(tid, id)
	if err != nil {
		if errors.Is(err, repository.ErrBuildNotFound) {
			http.Error(w, "Build not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get build: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, build)
}

func (h *BuildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.repo.DeleteBuild(tid, id); err != nil {
		if errors.Is(err, repository.ErrBuildNotFound) {
			http.Error(w, "Build not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete build: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStatistics serves the dashboard statistics computed from persisted runs.
// ?refresh=true forces the repository metadata cache cold.
func (h *BuildHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]
	refresh := r.URL.Query().Get("refresh") == "true"

	result, err := h.statsService.ComputeStoredStatistics(r.Context(), tid, id, refresh)
	if err != nil {
		h.writeStatsError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetLiveStatistics bypasses the persisted runs and aggregates directly from
// the GitHub API. Slower than GetStatistics but reflects runs the sync worker
// has not ingested yet.
func (h *BuildHandler) GetLiveStatistics(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]

	result, err := h.statsService.ComputeLiveStatistics(r.Context(), tid, id)
	if err != nil {
		h.writeStatsError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *BuildHandler) writeStatsError(w http.ResponseWriter, buildID string, err error) {
	switch {
	case errors.Is(err, repository.ErrBuildNotFound):
		http.Error(w, "Build not found", http.StatusNotFound)
	case errors.Is(err, token.ErrTokenConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrTokenNotFound):
		http.Error(w, "Saved token not found", http.StatusBadRequest)
	default:
		h.logger.Error().Err(err).Str("build_id", buildID).Msg("Failed to compute statistics")
		http.Error(w, "Failed to compute statistics: "+err.Error(), http.StatusInternalServerError)
	}
}

// TriggerSync starts a run-sync workflow for one build and returns 202 with
// the workflow ID. The sync itself happens on the worker.
func (h *BuildHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]

	if _, err := h.repo.GetBuildByID(tid, id); err != nil {
		if errors.Is(err, repository.ErrBuildNotFound) {
			http.Error(w, "Build not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get build: "+err.Error(), http.StatusInternalServerError)
		return
	}

	options := tc.StartWorkflowOptions{
		ID:        temporal.SyncWorkflowIDPrefix + uuid.NewString(),
		TaskQueue: temporal.TaskQueueName,
	}
	run, err := h.temporalClient.ExecuteWorkflow(r.Context(), options, workflows.SyncWorkflow, temporal.SyncParams{
		TenantID: tid,
		BuildID:  id,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("build_id", id).Msg("Failed to start sync workflow")
		http.Error(w, "Failed to start sync: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}
