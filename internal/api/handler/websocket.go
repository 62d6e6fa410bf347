package handler

import (
	"net/http"

	"github.com/mcoot/tictactoe-live/internal/api/apierr"
	"github.com/mcoot/tictactoe-live/internal/api/middleware"
	"github.com/mcoot/tictactoe-live/internal/model"
)

// Acceptor upgrades an authenticated request into a live session
type Acceptor interface {
	Accept(w http.ResponseWriter, r *http.Request, identity model.Identity)
}

// WebSocketHandler serves the realtime endpoint
type WebSocketHandler struct {
	acceptor Acceptor
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(acceptor Acceptor) *WebSocketHandler {
	return &WebSocketHandler{acceptor: acceptor}
}

// Connect handles GET /ws
func (h *WebSocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}
	h.acceptor.Accept(w, r, identity)
}
