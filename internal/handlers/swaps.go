package handlers

import (
	"net/http"
	"strconv"

	"github.com/adjuface/facegate/internal/middleware"
	"github.com/adjuface/facegate/pkg/httpext"
	"github.com/rs/zerolog/log"
)

// HandleSwap runs one photo submission through the orchestrator and writes
// either the swapped image or the user-facing failure.
func (h *Handlers) HandleSwap(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	if !h.limiter.Allow(userID) {
		httpext.JsonError(w, "too_fast", "You are sending photos too fast. Wait a moment.", http.StatusTooManyRequests)
		return
	}

	image, err := readImage(r)
	if err != nil {
		httpext.JsonError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.swaps.HandleImage(r.Context(), userID, image)
	if err != nil {
		out := classifySwapError(err)
		if out.Status == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("Swap failed unexpectedly")
		}
		httpext.JsonError(w, out.Code, out.Message, out.Status)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Quota-Remaining", strconv.Itoa(result.QuotaRemaining))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Image); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to write swap result")
	}
}
