package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	stats       map[model.Username]*model.PlayerStats
	history     map[model.Username][]*model.MatchRecord
	friendships map[pairKey]*model.Friendship
}

// pairKey is order-independent so either direction finds the friendship
type pairKey struct {
	low, high model.Username
}

func keyFor(a, b model.Username) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{low: a, high: b}
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		stats:       make(map[model.Username]*model.PlayerStats),
		history:     make(map[model.Username][]*model.MatchRecord),
		friendships: make(map[pairKey]*model.Friendship),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op
func (s *Storage) Close() error {
	return nil
}

// Result operations

func (s *Storage) RecordResult(ctx context.Context, winner, loser model.Username, draw bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draw {
		s.statsFor(winner).Draws++
		s.statsFor(loser).Draws++
		return nil
	}
	s.statsFor(winner).Wins++
	s.statsFor(loser).Losses++
	return nil
}

func (s *Storage) AppendMatchHistory(ctx context.Context, record *model.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	for _, p := range record.Players {
		s.history[p] = append(s.history[p], &stored)
	}
	return nil
}

func (s *Storage) AddTimePlayed(ctx context.Context, username model.Username, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsFor(username).TimePlayedSeconds += seconds
	return nil
}

func (s *Storage) GetStats(ctx context.Context, username model.Username) (*model.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[username]
	if !ok {
		return &model.PlayerStats{Username: username}, nil
	}
	out := *st
	return &out, nil
}

func (s *Storage) ListMatchHistory(ctx context.Context, username model.Username, limit int) ([]*model.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.history[username]
	out := make([]*model.MatchRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		r := *records[i]
		out = append(out, &r)
	}
	return out, nil
}

// statsFor returns the mutable stats entry, creating it. Caller must hold mu.
func (s *Storage) statsFor(username model.Username) *model.PlayerStats {
	st, ok := s.stats[username]
	if !ok {
		st = &model.PlayerStats{Username: username}
		s.stats[username] = st
	}
	return st
}

// Friendship operations

func (s *Storage) FriendshipExists(ctx context.Context, a, b model.Username) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.friendships[keyFor(a, b)]
	return ok, nil
}

func (s *Storage) CreatePendingFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error {
	if requester == addressee {
		return model.ErrSelfFriendship
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(requester, addressee)
	if _, ok := s.friendships[key]; ok {
		return nil
	}
	s.friendships[key] = &model.Friendship{
		Requester: requester,
		Addressee: addressee,
		Status:    model.FriendshipPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
	return nil
}

func (s *Storage) AcceptFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.friendships[keyFor(requester, addressee)]
	if !ok || f.Requester != requester {
		return model.ErrFriendshipNotFound
	}
	if f.Status == model.FriendshipAccepted {
		return nil
	}
	f.Status = model.FriendshipAccepted
	f.UpdatedAt = at
	return nil
}

func (s *Storage) ListFriends(ctx context.Context, username model.Username) ([]*model.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Friendship
	for key, f := range s.friendships {
		if key.low == username || key.high == username {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
