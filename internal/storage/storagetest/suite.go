// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// Suite runs the storage contract against Storage.
// Embed it and assign Storage and Ctx in SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func match(id string, winner, loser model.Username, draw bool, at time.Time) *model.MatchRecord {
	r := &model.MatchRecord{
		ID:         id,
		Players:    [2]model.Username{winner, loser},
		Draw:       draw,
		FinishedAt: at,
	}
	if !draw {
		r.Winner = winner
		r.Loser = loser
	}
	return r
}

// Result tests

func (s *Suite) TestUnknownPlayerHasZeroStats() {
	stats, err := s.Storage.GetStats(s.Ctx, "nobody")
	s.Require().NoError(err)
	s.Equal(&model.PlayerStats{Username: "nobody"}, stats)
}

func (s *Suite) TestRecordWin() {
	s.Require().NoError(s.Storage.RecordResult(s.Ctx, "alice", "bob", false))
	s.Require().NoError(s.Storage.RecordResult(s.Ctx, "alice", "bob", false))

	alice, err := s.Storage.GetStats(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(2, alice.Wins)
	s.Equal(0, alice.Losses)

	bob, err := s.Storage.GetStats(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Equal(0, bob.Wins)
	s.Equal(2, bob.Losses)
}

func (s *Suite) TestRecordDraw() {
	s.Require().NoError(s.Storage.RecordResult(s.Ctx, "alice", "bob", true))

	for _, name := range []model.Username{"alice", "bob"} {
		stats, err := s.Storage.GetStats(s.Ctx, name)
		s.Require().NoError(err)
		s.Equal(1, stats.Draws, name)
		s.Equal(0, stats.Wins, name)
		s.Equal(0, stats.Losses, name)
	}
}

func (s *Suite) TestAddTimePlayed() {
	s.Require().NoError(s.Storage.AddTimePlayed(s.Ctx, "alice", 30))
	s.Require().NoError(s.Storage.AddTimePlayed(s.Ctx, "alice", 12))
	s.Require().NoError(s.Storage.AddTimePlayed(s.Ctx, "alice", 0))

	stats, err := s.Storage.GetStats(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(42), stats.TimePlayedSeconds)
}

func (s *Suite) TestMatchHistoryNewestFirst() {
	s.Require().NoError(s.Storage.AppendMatchHistory(s.Ctx, match("m1", "alice", "bob", false, epoch)))
	s.Require().NoError(s.Storage.AppendMatchHistory(s.Ctx, match("m2", "bob", "alice", false, epoch.Add(time.Minute))))
	s.Require().NoError(s.Storage.AppendMatchHistory(s.Ctx, match("m3", "alice", "carol", true, epoch.Add(2*time.Minute))))

	alice, err := s.Storage.ListMatchHistory(s.Ctx, "alice", 0)
	s.Require().NoError(err)
	s.Require().Len(alice, 3)
	s.Equal("m3", alice[0].ID)
	s.Equal("m1", alice[2].ID)
	s.True(alice[0].Draw)
	s.Empty(alice[0].Winner)
	s.Equal(model.Username("bob"), alice[1].Winner)
	s.Equal(model.Username("alice"), alice[1].Loser)
	s.True(epoch.Equal(alice[2].FinishedAt))

	bob, err := s.Storage.ListMatchHistory(s.Ctx, "bob", 0)
	s.Require().NoError(err)
	s.Len(bob, 2)
}

func (s *Suite) TestMatchHistoryLimit() {
	for i, id := range []string{"m1", "m2", "m3"} {
		s.Require().NoError(s.Storage.AppendMatchHistory(s.Ctx, match(id, "alice", "bob", false, epoch.Add(time.Duration(i)*time.Minute))))
	}

	records, err := s.Storage.ListMatchHistory(s.Ctx, "alice", 2)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("m3", records[0].ID)
	s.Equal("m2", records[1].ID)
}

// Friendship tests

func (s *Suite) TestNoFriendshipInitially() {
	exists, err := s.Storage.FriendshipExists(s.Ctx, "alice", "bob")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *Suite) TestPendingFriendshipExistsBothWays() {
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "alice", "bob", epoch))

	exists, err := s.Storage.FriendshipExists(s.Ctx, "alice", "bob")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.Storage.FriendshipExists(s.Ctx, "bob", "alice")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *Suite) TestCreatePendingIsIdempotent() {
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "alice", "bob", epoch))
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "bob", "alice", epoch.Add(time.Minute)))

	friends, err := s.Storage.ListFriends(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(friends, 1)
	s.Equal(model.Username("alice"), friends[0].Requester)
}

func (s *Suite) TestCannotBefriendSelf() {
	err := s.Storage.CreatePendingFriendship(s.Ctx, "alice", "alice", epoch)
	s.ErrorIs(err, model.ErrSelfFriendship)
}

func (s *Suite) TestAcceptFriendship() {
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "alice", "bob", epoch))
	s.Require().NoError(s.Storage.AcceptFriendship(s.Ctx, "alice", "bob", epoch.Add(time.Hour)))

	friends, err := s.Storage.ListFriends(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Require().Len(friends, 1)
	s.Equal(model.FriendshipAccepted, friends[0].Status)
	s.Equal(model.Username("alice"), friends[0].Requester)
	s.Equal(model.Username("bob"), friends[0].Addressee)
	s.True(epoch.Add(time.Hour).Equal(friends[0].UpdatedAt))
}

func (s *Suite) TestAcceptWithoutRequestFails() {
	err := s.Storage.AcceptFriendship(s.Ctx, "alice", "bob", epoch)
	s.ErrorIs(err, model.ErrFriendshipNotFound)
}

func (s *Suite) TestRequesterCannotAcceptOwnRequest() {
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "alice", "bob", epoch))

	err := s.Storage.AcceptFriendship(s.Ctx, "bob", "alice", epoch)
	s.ErrorIs(err, model.ErrFriendshipNotFound)
}

func (s *Suite) TestListFriendsOrderedByCreation() {
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "carol", "alice", epoch.Add(time.Minute)))
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "alice", "bob", epoch))
	s.Require().NoError(s.Storage.CreatePendingFriendship(s.Ctx, "bob", "carol", epoch))

	friends, err := s.Storage.ListFriends(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(friends, 2)
	s.Equal(model.Username("bob"), friends[0].Addressee)
	s.Equal(model.Username("carol"), friends[1].Requester)
}
