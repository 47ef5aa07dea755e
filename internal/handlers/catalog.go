package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adjuface/facegate/internal/catalog"
	"github.com/adjuface/facegate/internal/middleware"
	"github.com/adjuface/facegate/pkg/httpext"
	"github.com/rs/zerolog/log"
)

type selectRequest struct {
	Category string `json:"category"`
	Mode     string `json:"mode,omitempty"`
}

// HandleListCategories returns the catalog summaries in document order.
func (h *Handlers) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	httpext.JsonResponse(w, http.StatusOK, h.catalog.Categories())
}

// HandleSelectCategory stores the user's category (and optionally a specific
// target mode) after validating it against the catalog.
func (h *Handlers) HandleSelectCategory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "invalid_request", "malformed request body", http.StatusBadRequest)
		return
	}

	if _, err := h.catalog.ResolveTarget(req.Category, req.Mode); err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownCategory):
			httpext.JsonError(w, "unknown_category", "No such category.", http.StatusNotFound)
		case errors.Is(err, catalog.ErrTargetNotFound):
			httpext.JsonError(w, "target_not_found", "No such target in that category.", http.StatusNotFound)
		default:
			httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		}
		return
	}

	if err := h.accounts.SetSelection(r.Context(), userID, req.Category, req.Mode); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to store selection")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, map[string]string{
		"category": req.Category,
		"mode":     req.Mode,
	})
}
