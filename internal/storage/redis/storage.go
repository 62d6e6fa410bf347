package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Result operations

func (s *Storage) RecordResult(ctx context.Context, winner, loser model.Username, draw bool) error {
	pipe := s.client.TxPipeline()
	if draw {
		pipe.HIncrBy(ctx, statsKey(winner), fieldDraws, 1)
		pipe.HIncrBy(ctx, statsKey(loser), fieldDraws, 1)
	} else {
		pipe.HIncrBy(ctx, statsKey(winner), fieldWins, 1)
		pipe.HIncrBy(ctx, statsKey(loser), fieldLosses, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) AppendMatchHistory(ctx context.Context, record *model.MatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, p := range record.Players {
		key := historyKey(p)
		pipe.LPush(ctx, key, data)
		if s.cfg.HistoryLimit > 0 {
			pipe.LTrim(ctx, key, 0, s.cfg.HistoryLimit-1)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) AddTimePlayed(ctx context.Context, username model.Username, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	return s.client.HIncrBy(ctx, statsKey(username), fieldTimePlayed, seconds).Err()
}

func (s *Storage) GetStats(ctx context.Context, username model.Username) (*model.PlayerStats, error) {
	fields, err := s.client.HGetAll(ctx, statsKey(username)).Result()
	if err != nil {
		return nil, err
	}

	stats := &model.PlayerStats{Username: username}
	ints := map[string]*int{
		fieldWins:   &stats.Wins,
		fieldLosses: &stats.Losses,
		fieldDraws:  &stats.Draws,
	}
	for field, dst := range ints {
		if raw, ok := fields[field]; ok {
			if *dst, err = strconv.Atoi(raw); err != nil {
				return nil, err
			}
		}
	}
	if raw, ok := fields[fieldTimePlayed]; ok {
		if stats.TimePlayedSeconds, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *Storage) ListMatchHistory(ctx context.Context, username model.Username, limit int) ([]*model.MatchRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	values, err := s.client.LRange(ctx, historyKey(username), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*model.MatchRecord, 0, len(values))
	for _, val := range values {
		var record model.MatchRecord
		if err := json.Unmarshal([]byte(val), &record); err != nil {
			continue // Skip invalid data
		}
		records = append(records, &record)
	}
	return records, nil
}

// Friendship operations

func (s *Storage) FriendshipExists(ctx context.Context, a, b model.Username) (bool, error) {
	n, err := s.client.Exists(ctx, friendshipKey(a, b)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) CreatePendingFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error {
	if requester == addressee {
		return model.ErrSelfFriendship
	}

	data, err := json.Marshal(&model.Friendship{
		Requester: requester,
		Addressee: addressee,
		Status:    model.FriendshipPending,
		CreatedAt: at,
		UpdatedAt: at,
	})
	if err != nil {
		return err
	}

	key := friendshipKey(requester, addressee)
	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil || !created {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, friendsIndexKey(requester), key)
	pipe.SAdd(ctx, friendsIndexKey(addressee), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) AcceptFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error {
	key := friendshipKey(requester, addressee)

	// Optimistic transaction so a concurrent accept cannot be lost
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrFriendshipNotFound
			}
			return err
		}

		var f model.Friendship
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if f.Requester != requester {
			return model.ErrFriendshipNotFound
		}
		if f.Status == model.FriendshipAccepted {
			return nil
		}

		f.Status = model.FriendshipAccepted
		f.UpdatedAt = at
		updated, err := json.Marshal(&f)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
}

func (s *Storage) ListFriends(ctx context.Context, username model.Username) ([]*model.Friendship, error) {
	keys, err := s.client.SMembers(ctx, friendsIndexKey(username)).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []*model.Friendship{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	friends := make([]*model.Friendship, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var f model.Friendship
		if err := json.Unmarshal([]byte(str), &f); err != nil {
			continue // Skip invalid data
		}
		friends = append(friends, &f)
	}
	sort.Slice(friends, func(i, j int) bool {
		return friends[i].CreatedAt.Before(friends[j].CreatedAt)
	})
	return friends, nil
}
