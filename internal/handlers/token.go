package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/authz"
	"github.com/cipulse/cipulse-api/internal/repository"
	"github.com/cipulse/cipulse-api/internal/utils"
)

type TokenHandler struct {
	repo   repository.TokenRepository
	logger zerolog.Logger
}

func NewTokenHandler(repo repository.TokenRepository, logger zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		repo:   repo,
		logger: logger.With().Str("component", "token_handler").Logger(),
	}
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	var payload struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" || strings.TrimSpace(payload.Token) == "" {
		http.Error(w, "Name and token are required", http.StatusBadRequest)
		return
	}

	ciphertext, err := utils.EncryptToken(payload.Token)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encrypt token")
		http.Error(w, "Failed to store token", http.StatusInternalServerError)
		return
	}

	created, err := h.repo.CreateToken(tid, payload.Name, ciphertext)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create token")
		http.Error(w, "Failed to create token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Ciphertext carries json:"-" so the response never echoes the secret.
	writeJSON(w, http.StatusCreated, created)
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	tokens, err := h.repo.ListTokens(tid)
	if err != nil {
		http.Error(w, "Failed to list tokens: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.repo.DeleteToken(tid, id); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			http.Error(w, "Token not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
