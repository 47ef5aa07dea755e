package handlers

import (
	"net/http"

	"github.com/adjuface/facegate/pkg/httpext"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// HandleListAccounts dumps all known accounts for the operator.
func (h *Handlers) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.All(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list accounts")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, accounts)
}

// HandleResetAccount returns one account to the free starter state.
func (h *Handlers) HandleResetAccount(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	if userID == "" {
		httpext.JsonError(w, "invalid_request", "account id is required", http.StatusBadRequest)
		return
	}

	if err := h.accounts.Reset(r.Context(), userID, h.quotaCfg.FreeStarter); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to reset account")
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}

	acct, err := h.accounts.GetOrCreate(r.Context(), userID)
	if err != nil {
		httpext.JsonError(w, "internal_error", "", http.StatusInternalServerError)
		return
	}
	httpext.JsonResponse(w, http.StatusOK, acct)
}
