package storage

import (
	"context"
	"time"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Result operations
	RecordResult(ctx context.Context, winner, loser model.Username, draw bool) error
	AppendMatchHistory(ctx context.Context, record *model.MatchRecord) error
	AddTimePlayed(ctx context.Context, username model.Username, seconds int64) error
	GetStats(ctx context.Context, username model.Username) (*model.PlayerStats, error)
	ListMatchHistory(ctx context.Context, username model.Username, limit int) ([]*model.MatchRecord, error)

	// Friendship operations
	FriendshipExists(ctx context.Context, a, b model.Username) (bool, error)
	CreatePendingFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error
	AcceptFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error
	ListFriends(ctx context.Context, username model.Username) ([]*model.Friendship, error)

	Close() error
}
