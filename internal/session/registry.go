package session

import (
	"log/slog"
	"sync"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/model"
)

// Registry tracks every live connection by socket and by identity.
// All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	bySocket   map[SocketID]*Connection
	byUsername map[model.Username]*Connection

	clock      clock.Clock
	bufferSize int
	logger     *slog.Logger
}

// NewRegistry creates an empty Registry
func NewRegistry(clk clock.Clock, bufferSize int, logger *slog.Logger) *Registry {
	return &Registry{
		bySocket:   make(map[SocketID]*Connection),
		byUsername: make(map[model.Username]*Connection),
		clock:      clk,
		bufferSize: bufferSize,
		logger:     logger.With(slog.String("component", "registry")),
	}
}

// Bind creates the connection for socket and identity.
//
// Binding the same (socket, identity) pair again returns the existing connection
// together with ErrAlreadyBound so callers can treat it as a no-op.
func (r *Registry) Bind(socket SocketID, identity model.Identity) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bySocket[socket]; ok {
		if existing.Username() == identity.Username {
			return existing, model.ErrAlreadyBound
		}
		return nil, model.ErrSocketRebind
	}
	if _, ok := r.byUsername[identity.Username]; ok {
		return nil, model.ErrAlreadyConnected
	}

	conn := NewConnection(socket, identity, r.clock.Now(), r.bufferSize)
	r.bySocket[socket] = conn
	r.byUsername[identity.Username] = conn

	r.logger.Info("connection bound",
		slog.String("socket_id", string(socket)),
		slog.String("username", string(identity.Username)),
		slog.Int("total_connections", len(r.bySocket)))
	return conn, nil
}

// LookupBySocket returns the connection for socket, or nil
func (r *Registry) LookupBySocket(socket SocketID) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySocket[socket]
}

// LookupByUsername returns the live connection of a player, or nil
func (r *Registry) LookupByUsername(username model.Username) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUsername[username]
}

// Unbind removes and returns the connection for socket, or nil if none was bound
func (r *Registry) Unbind(socket SocketID) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.bySocket[socket]
	if !ok {
		return nil
	}
	delete(r.bySocket, socket)
	if r.byUsername[conn.Username()] == conn {
		delete(r.byUsername, conn.Username())
	}

	r.logger.Info("connection unbound",
		slog.String("socket_id", string(socket)),
		slog.String("username", string(conn.Username())),
		slog.Int("total_connections", len(r.bySocket)))
	return conn
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySocket)
}
