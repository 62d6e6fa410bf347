package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini  *miniredis.Miniredis
	redis *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.HistoryLimit = 3

	s.redis = NewWithClient(client, cfg)
	s.Storage = s.redis
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestStatsStoredAsHash() {
	s.Require().NoError(s.Storage.RecordResult(s.Ctx, "alice", "bob", false))
	s.Require().NoError(s.Storage.AddTimePlayed(s.Ctx, "alice", 5))

	s.Equal("1", s.mini.HGet("ttt:stats:alice", "wins"))
	s.Equal("5", s.mini.HGet("ttt:stats:alice", "time_played_seconds"))
	s.Equal("1", s.mini.HGet("ttt:stats:bob", "losses"))
}

func (s *StorageSuite) TestHistoryTrimmedToLimit() {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		record := &model.MatchRecord{
			ID:         string(rune('a' + i)),
			Winner:     "alice",
			Loser:      "bob",
			Players:    [2]model.Username{"alice", "bob"},
			FinishedAt: at,
		}
		s.Require().NoError(s.Storage.AppendMatchHistory(s.Ctx, record))
	}

	records, err := s.Storage.ListMatchHistory(s.Ctx, "alice", 0)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("e", records[0].ID)
}

func (s *StorageSuite) TestFriendshipIndexedForBothPlayers() {
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "bob", "alice", time.Now()))

	for _, name := range []string{"alice", "bob"} {
		members, err := s.mini.SMembers("ttt:idx:friends:" + name)
		s.Require().NoError(err)
		s.Equal([]string{"ttt:friendship:alice:bob"}, members)
	}
}

func (s *StorageSuite) TestGetStatsFailsWhenRedisDown() {
	s.mini.Close()

	_, err := s.Storage.GetStats(s.Ctx, "alice")
	s.Error(err)
}
