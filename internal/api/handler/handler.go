package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/p3root/StratisFullNode/internal/peg"
	"github.com/p3root/StratisFullNode/internal/voting"
	"github.com/p3root/StratisFullNode/internal/whitelist"
	"go.uber.org/zap"
)

// Handler holds the dependencies for API handlers
type Handler struct {
	Engine      *voting.Engine
	Whitelist   whitelist.Store
	Conversions peg.ConversionStore
	Logger      *zap.Logger
	AdminToken  string
}

// NewHandler creates a new Handler instance
func NewHandler(engine *voting.Engine, wl whitelist.Store, conversions peg.ConversionStore, logger *zap.Logger, adminToken string) *Handler {
	return &Handler{
		Engine:      engine,
		Whitelist:   wl,
		Conversions: conversions,
		Logger:      logger,
		AdminToken:  adminToken,
	}
}

// NewRouter creates and configures the HTTP router with all API routes
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()

	// Public health check endpoint
	r.HandleFunc("/api/health", h.HandleHealth).Methods(http.MethodGet)

	// Read-only governance projections
	r.HandleFunc("/api/polls/pending", h.HandlePendingPolls).Methods(http.MethodGet)
	r.HandleFunc("/api/polls/approved", h.HandleApprovedPolls).Methods(http.MethodGet)
	r.HandleFunc("/api/polls/executed", h.HandleExecutedPolls).Methods(http.MethodGet)
	r.HandleFunc("/api/whitelist", h.HandleWhitelist).Methods(http.MethodGet)
	r.HandleFunc("/api/votes/scheduled", h.HandleScheduledVotes).Methods(http.MethodGet)
	r.HandleFunc("/api/conversions", h.HandleConversionRequests).Methods(http.MethodGet)

	// Protected command endpoints
	r.HandleFunc("/api/votes/schedule", h.RequireAuth(h.HandleScheduleVote)).Methods(http.MethodPost)

	return r
}

// RequireAuth is a middleware that validates the bearer token
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		expected := "Bearer " + h.AdminToken

		if auth != expected {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		next(w, r)
	}
}

// HandleHealth returns a simple health check response
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the structured failure shape: a short message plus a
// detailed diagnostic, never raw internal state.
func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	h.writeJSON(w, status, map[string]string{
		"error":  message,
		"detail": detail,
	})
}
