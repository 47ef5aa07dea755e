package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/adjuface/facegate/internal/auth"
	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/pkg/httpext"
	"github.com/rs/zerolog/log"
)

type tokenRequest struct {
	AdapterSecret string `json:"adapter_secret"`
	UserID        string `json:"user_id"`
	Admin         bool   `json:"admin,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleToken issues a bearer token to the chat adapter for one of its users.
// The adapter authenticates with the shared secret.
func (h *Handlers) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "invalid_request", "malformed request body", http.StatusBadRequest)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.AdapterSecret), []byte(config.GetAdapterSecret())) != 1 {
		log.Warn().Msg("Token request with wrong adapter secret")
		httpext.JsonError(w, "invalid_client", "unknown adapter", http.StatusUnauthorized)
		return
	}
	if req.UserID == "" {
		httpext.JsonError(w, "invalid_request", "user_id is required", http.StatusBadRequest)
		return
	}

	token, err := auth.IssueToken(req.UserID, req.Admin)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}
