package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adjuface/facegate/internal/account"
	"github.com/adjuface/facegate/internal/middleware"
	"github.com/adjuface/facegate/internal/services/draw"
	"github.com/adjuface/facegate/pkg/httpext"
	"github.com/rs/zerolog/log"
)

type statusResponse struct {
	UserID           string `json:"user_id"`
	Tier             string `json:"tier"`
	QuotaRemaining   int    `json:"quota_remaining"`
	TargetSlots      int    `json:"target_slots"`
	SelectedCategory string `json:"selected_category,omitempty"`
	SelectedMode     string `json:"selected_mode,omitempty"`
	CustomTargetSet  bool   `json:"custom_target_set"`
}

// HandleStatus reports the account's tier, quota and current selection.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	acct, err := h.accounts.GetOrCreate(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load account")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, statusResponse{
		UserID:           acct.UserID,
		Tier:             string(acct.Tier),
		QuotaRemaining:   acct.QuotaRemaining,
		TargetSlots:      acct.TargetSlots,
		SelectedCategory: acct.SelectedCategory,
		SelectedMode:     acct.SelectedMode,
		CustomTargetSet:  acct.CustomTargetPath != "",
	})
}

// HandleUpgradePremium applies one premium purchase. Purchases are additive;
// buying again simply adds another round of quota and target slots.
func (h *Handlers) HandleUpgradePremium(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	err := h.accounts.UpgradeToPremium(r.Context(), userID, h.quotaCfg.PremiumBonusQuota, h.quotaCfg.PremiumBonusTargets)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to upgrade account")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	h.HandleStatus(w, r)
}

// HandleUploadTarget stores a premium user's custom target face.
func (h *Handlers) HandleUploadTarget(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	image, err := readImage(r)
	if err != nil {
		httpext.JsonError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	// Check entitlement before touching the filesystem.
	acct, err := h.accounts.GetOrCreate(r.Context(), userID)
	if err != nil {
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}
	if !acct.IsPremium() {
		httpext.JsonError(w, "not_premium", "Custom targets require premium.", http.StatusForbidden)
		return
	}

	path, err := saveTargetUpload(userID, image)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to save target upload")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	if err := h.accounts.SetCustomTarget(r.Context(), userID, path); err != nil {
		switch {
		case errors.Is(err, account.ErrNotPremium):
			httpext.JsonError(w, "not_premium", "Custom targets require premium.", http.StatusForbidden)
		case errors.Is(err, account.ErrNoTargetSlots):
			httpext.JsonError(w, "no_target_slots", "No target uploads left.", http.StatusForbidden)
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to set custom target")
			httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		}
		return
	}

	httpext.JsonResponse(w, http.StatusOK, map[string]bool{"custom_target_set": true})
}

// HandleClearTarget removes the custom target so catalog selection applies
// again.
func (h *Handlers) HandleClearTarget(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	if err := h.accounts.ClearCustomTarget(r.Context(), userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to clear custom target")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, map[string]bool{"custom_target_set": false})
}

type drawRequest struct {
	Prompt string `json:"prompt"`
}

// HandleDraw generates an image from a text prompt for premium users.
func (h *Handlers) HandleDraw(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	if !h.draws.Enabled() {
		httpext.JsonError(w, "draw_disabled", "Drawing is not available.", http.StatusNotImplemented)
		return
	}

	acct, err := h.accounts.GetOrCreate(r.Context(), userID)
	if err != nil {
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}
	if !acct.IsPremium() {
		httpext.JsonError(w, "not_premium", "Drawing requires premium.", http.StatusForbidden)
		return
	}

	var req drawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		httpext.JsonError(w, "invalid_request", "prompt is required", http.StatusBadRequest)
		return
	}

	image, err := h.draws.Generate(r.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, draw.ErrDisabled) {
			httpext.JsonError(w, "draw_disabled", "Drawing is not available.", http.StatusNotImplemented)
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Draw failed")
		httpext.JsonError(w, "draw_failed", "Could not generate that image.", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(image)
}
