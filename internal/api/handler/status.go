package handler

import (
	"net/http"

	"github.com/mcoot/tictactoe-live/internal/api/response"
)

// Counter reports a live count
type Counter interface {
	Count() int
}

// QueueLen reports the matchmaking queue length
type QueueLen interface {
	Len() int
}

// StatusHandler reports live server occupancy
type StatusHandler struct {
	connections Counter
	rooms       Counter
	queue       QueueLen
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(connections, rooms Counter, queue QueueLen) *StatusHandler {
	return &StatusHandler{
		connections: connections,
		rooms:       rooms,
		queue:       queue,
	}
}

// Get handles GET /api/v1/status
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Status{
		Connections: h.connections.Count(),
		Rooms:       h.rooms.Count(),
		Queued:      h.queue.Len(),
	})
}
