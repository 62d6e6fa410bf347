package room

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/tictactoe-live/internal/dependencies/random"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/session"
)

// Rooms is the registry of live rooms, indexed by name and by seated username
type Rooms struct {
	mu         sync.RWMutex
	byName     map[string]*Room
	byUsername map[model.Username]*Room
	random     random.Random
	logger     *slog.Logger
}

func NewRooms(rnd random.Random, logger *slog.Logger) *Rooms {
	return &Rooms{
		byName:     make(map[string]*Room),
		byUsername: make(map[model.Username]*Room),
		random:     rnd,
		logger:     logger.With(slog.String("component", "rooms")),
	}
}

// Create seats two connections in a new room and starts its first game
func (rs *Rooms) Create(playerA, playerB *session.Connection) (*Room, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, c := range []*session.Connection{playerA, playerB} {
		if _, seated := rs.byUsername[c.Username()]; seated {
			return nil, fmt.Errorf("%s: %w", c.Username(), model.ErrAlreadySeated)
		}
	}

	r := New(playerA, playerB, rs.random)
	rs.byName[r.Name()] = r
	rs.byUsername[playerA.Username()] = r
	rs.byUsername[playerB.Username()] = r

	rs.logger.Info("room created",
		slog.String("room", r.Name()),
		slog.String("player_a", string(playerA.Username())),
		slog.String("player_b", string(playerB.Username())))
	return r, nil
}

// Get looks a room up by name
func (rs *Rooms) Get(name string) (*Room, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, model.ErrRoomNotFound)
	}
	return r, nil
}

// RoomFor returns the room username is seated in, or nil
func (rs *Rooms) RoomFor(username model.Username) *Room {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.byUsername[username]
}

// IsSeated reports whether username currently occupies a room
func (rs *Rooms) IsSeated(username model.Username) bool {
	return rs.RoomFor(username) != nil
}

// Remove drops a room from the registry. Removing twice is a no-op.
func (rs *Rooms) Remove(r *Room) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.byName[r.Name()] != r {
		return
	}
	delete(rs.byName, r.Name())
	for _, c := range r.Participants() {
		if rs.byUsername[c.Username()] == r {
			delete(rs.byUsername, c.Username())
		}
	}
	rs.logger.Info("room removed", slog.String("room", r.Name()))
}

// Count returns the number of live rooms
func (rs *Rooms) Count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.byName)
}

// All returns every live room
func (rs *Rooms) All() []*Room {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]*Room, 0, len(rs.byName))
	for _, r := range rs.byName {
		out = append(out, r)
	}
	return out
}
