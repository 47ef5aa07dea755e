package handlers

import (
	"net/http"

	"github.com/adjuface/facegate/internal/account"
	"github.com/adjuface/facegate/internal/catalog"
	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/internal/middleware"
	"github.com/adjuface/facegate/internal/services/draw"
	"github.com/adjuface/facegate/internal/services/swap"
	"github.com/adjuface/facegate/pkg/ratelimit"
	"github.com/gorilla/mux"
)

// Handlers is the HTTP and WebSocket surface the chat adapter talks to.
type Handlers struct {
	accounts account.Store
	catalog  *catalog.Catalog
	swaps    *swap.Service
	draws    *draw.Service
	limiter  *ratelimit.Limiter
	quotaCfg config.QuotaConfig
}

func New(accounts account.Store, cat *catalog.Catalog, swaps *swap.Service, draws *draw.Service, quotaCfg config.QuotaConfig) *Handlers {
	return &Handlers{
		accounts: accounts,
		catalog:  cat,
		swaps:    swaps,
		draws:    draws,
		limiter:  ratelimit.NewLimiter(quotaCfg.SubmitInterval, 1),
		quotaCfg: quotaCfg,
	}
}

func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/token", h.HandleToken).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.HandleWebSocket)

	admin := r.PathPrefix("/v1/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/accounts", h.HandleListAccounts).Methods(http.MethodGet)
	admin.HandleFunc("/accounts/{id}/reset", h.HandleResetAccount).Methods(http.MethodPost)

	user := r.PathPrefix("/v1").Subrouter()
	user.Use(middleware.RequireUser)
	user.HandleFunc("/swaps", h.HandleSwap).Methods(http.MethodPost)
	user.HandleFunc("/categories", h.HandleListCategories).Methods(http.MethodGet)
	user.HandleFunc("/categories/select", h.HandleSelectCategory).Methods(http.MethodPost)
	user.HandleFunc("/account", h.HandleStatus).Methods(http.MethodGet)
	user.HandleFunc("/account/premium", h.HandleUpgradePremium).Methods(http.MethodPost)
	user.HandleFunc("/account/target", h.HandleUploadTarget).Methods(http.MethodPost)
	user.HandleFunc("/account/target", h.HandleClearTarget).Methods(http.MethodDelete)
	user.HandleFunc("/draws", h.HandleDraw).Methods(http.MethodPost)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
