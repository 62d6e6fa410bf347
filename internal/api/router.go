package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tictactoe-live/internal/api/apierr"
	"github.com/mcoot/tictactoe-live/internal/api/handler"
	"github.com/mcoot/tictactoe-live/internal/api/middleware"
	"github.com/mcoot/tictactoe-live/internal/api/response"
	rootmw "github.com/mcoot/tictactoe-live/internal/middleware"
	"github.com/mcoot/tictactoe-live/internal/realtime"
	"github.com/mcoot/tictactoe-live/internal/services/matchmaking"
	"github.com/mcoot/tictactoe-live/internal/services/room"
	"github.com/mcoot/tictactoe-live/internal/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Verifier middleware.TokenVerifier
	Gate     *realtime.Gate
	Registry *session.Registry
	Rooms    *room.Rooms
	Queue    *matchmaking.Queue
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	statusHandler := handler.NewStatusHandler(cfg.Registry, cfg.Rooms, cfg.Queue)
	wsHandler := handler.NewWebSocketHandler(cfg.Gate)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Verifier, cfg.Logger)
	loggingMiddleware := rootmw.Logging(cfg.Logger)
	recoveryMiddleware := rootmw.Recovery(cfg.Logger, writePanicError)

	// Recovery sits inside logging so it sees the wrapped writer
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	// API subrouter
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/status", statusHandler.Get).Methods(http.MethodGet)

	// Realtime endpoint; the token is checked before the upgrade
	r.Handle("/ws", authMiddleware(http.HandlerFunc(wsHandler.Connect))).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	apierr.WriteError(w, apierr.NewNotFoundError())
}

// writePanicError answers a recovered panic with a JSON error body
func writePanicError(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
