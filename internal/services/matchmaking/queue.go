package matchmaking

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/room"
	"github.com/mcoot/tictactoe-live/internal/session"
)

// Queue is the FIFO waiting list of connections seeking an opponent.
// Enqueue and pairing share one lock so Join is atomic.
type Queue struct {
	mu      sync.Mutex
	entries []*session.Connection
	rooms   *room.Rooms
	logger  *slog.Logger
}

func NewQueue(rooms *room.Rooms, logger *slog.Logger) *Queue {
	return &Queue{
		rooms:  rooms,
		logger: logger.With(slog.String("component", "queue")),
	}
}

// Enqueue appends conn to the queue.
// Fails with ErrAlreadyQueued or ErrAlreadySeated without changing the queue.
func (q *Queue) Enqueue(conn *session.Connection) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueue(conn)
}

func (q *Queue) enqueue(conn *session.Connection) error {
	if q.indexOf(conn.Username()) >= 0 {
		return fmt.Errorf("%s: %w", conn.Username(), model.ErrAlreadyQueued)
	}
	if q.rooms.IsSeated(conn.Username()) {
		return fmt.Errorf("%s: %w", conn.Username(), model.ErrAlreadySeated)
	}
	q.entries = append(q.entries, conn)
	q.logger.Info("queue joined",
		slog.String("username", string(conn.Username())),
		slog.Int("queue_length", len(q.entries)))
	return nil
}

// TryPair seats the two oldest entries in a new room.
// Returns nil when fewer than two connections are waiting.
func (q *Queue) TryPair() (*room.Room, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tryPair()
}

func (q *Queue) tryPair() (*room.Room, error) {
	if len(q.entries) < 2 {
		return nil, nil
	}
	a, b := q.entries[0], q.entries[1]

	r, err := q.rooms.Create(a, b)
	if err != nil {
		return nil, err
	}
	q.entries = q.entries[2:]
	q.logger.Info("queue paired",
		slog.String("room", r.Name()),
		slog.String("player_a", string(a.Username())),
		slog.String("player_b", string(b.Username())))
	return r, nil
}

// Join enqueues conn and immediately attempts a pairing, under one lock
func (q *Queue) Join(conn *session.Connection) (*room.Room, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.enqueue(conn); err != nil {
		return nil, err
	}
	return q.tryPair()
}

// RemoveIfQueued drops conn's entry, reporting whether it was queued.
// Only the exact connection is removed, never a newer one for the same identity.
func (q *Queue) RemoveIfQueued(conn *session.Connection) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(conn.Username())
	if idx < 0 || q.entries[idx] != conn {
		return false
	}
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	q.logger.Info("queue left", slog.String("username", string(conn.Username())))
	return true
}

// Len returns the number of waiting connections
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Waiting returns the queued usernames, oldest first
func (q *Queue) Waiting() []model.Username {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.Username, len(q.entries))
	for i, c := range q.entries {
		out[i] = c.Username()
	}
	return out
}

func (q *Queue) indexOf(username model.Username) int {
	for i, c := range q.entries {
		if c.Username() == username {
			return i
		}
	}
	return -1
}
