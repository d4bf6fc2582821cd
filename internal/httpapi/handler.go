// Package httpapi exposes the bot over HTTP: message completion, asset
// retrieval, history, and a WebSocket chat.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/duckworks/geminiduck/internal/auth"
	"github.com/duckworks/geminiduck/internal/bot"
	"github.com/duckworks/geminiduck/internal/gemini"
	"github.com/duckworks/geminiduck/internal/history"
	"github.com/duckworks/geminiduck/internal/render"
	"github.com/duckworks/geminiduck/internal/store"
)

// Service is the bot surface the handlers call.
type Service interface {
	Handle(ctx context.Context, req bot.Request) (*bot.Response, error)
}

// AssetStore is the asset surface the handlers call.
type AssetStore interface {
	Acquire(id string) (string, func(), error)
	Remove(id string) error
}

// HistoryReader lists recent exchanges. May be nil when history is disabled.
type HistoryReader interface {
	Recent(limit int) ([]history.Exchange, error)
}

// Handler contains all HTTP handlers.
type Handler struct {
	service Service
	assets  AssetStore
	history HistoryReader
}

// NewHandler creates a new handler. history may be nil.
func NewHandler(service Service, assets AssetStore, history HistoryReader) *Handler {
	return &Handler{
		service: service,
		assets:  assets,
		history: history,
	}
}

// Routes builds the router. Everything under /v1 goes through auth;
// /healthz does not.
func (h *Handler) Routes(authService *auth.Service) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(authService.Middleware)
	api.HandleFunc("/messages", h.CreateMessage).Methods("POST")
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods("GET")
	api.HandleFunc("/assets/{id}", h.DeleteAsset).Methods("DELETE")
	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/chat", h.ChatWS).Methods("GET")
	return r
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps a pipeline error to an HTTP status and a stable kind
// label the client can branch on.
func statusForError(err error) (int, string) {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case gemini.KindInvalidRequest:
			return http.StatusBadRequest, string(apiErr.Kind)
		case gemini.KindRateLimited:
			return http.StatusTooManyRequests, string(apiErr.Kind)
		case gemini.KindTimeout:
			return http.StatusGatewayTimeout, string(apiErr.Kind)
		default:
			// AUTH means our upstream credentials are bad, not the caller's.
			return http.StatusBadGateway, string(apiErr.Kind)
		}
	}

	var rerr *render.Error
	if errors.As(err, &rerr) {
		if rerr.Kind == render.KindLayoutOverflow {
			return http.StatusUnprocessableEntity, string(rerr.Kind)
		}
		return http.StatusInternalServerError, string(rerr.Kind)
	}

	var serr *store.Error
	if errors.As(err, &serr) {
		if serr.Kind == store.KindNotFound {
			return http.StatusNotFound, string(serr.Kind)
		}
		return http.StatusInternalServerError, string(serr.Kind)
	}

	return http.StatusInternalServerError, "INTERNAL"
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": kind})
}
