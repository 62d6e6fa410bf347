package results

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-live/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage/memory"
	"github.com/mcoot/tictactoe-live/internal/testutil"
)

var errStorageDown = errors.New("storage down")

// failingStorage rejects every result write
type failingStorage struct {
	*memory.Storage
}

func (f failingStorage) RecordResult(context.Context, model.Username, model.Username, bool) error {
	return errStorageDown
}

type RecorderSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	recorder *Recorder
	ctx      context.Context
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.recorder = New(s.storage, s.clock, time.Second, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *RecorderSuite) wait() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	s.Require().NoError(s.recorder.Wait(ctx))
}

func (s *RecorderSuite) TestRecordGameWin() {
	s.recorder.RecordGame("alice", "bob", false)
	s.wait()

	alice, _ := s.storage.GetStats(s.ctx, "alice")
	bob, _ := s.storage.GetStats(s.ctx, "bob")
	s.Equal(1, alice.Wins)
	s.Equal(1, bob.Losses)

	history, err := s.storage.ListMatchHistory(s.ctx, "bob", 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(model.Username("alice"), history[0].Winner)
	s.Equal(model.Username("bob"), history[0].Loser)
	s.NotEmpty(history[0].ID)
	s.Equal(s.clock.Now(), history[0].FinishedAt)
}

func (s *RecorderSuite) TestRecordGameDraw() {
	s.recorder.RecordGame("alice", "bob", true)
	s.wait()

	history, _ := s.storage.ListMatchHistory(s.ctx, "alice", 0)
	s.Require().Len(history, 1)
	s.True(history[0].Draw)
	s.Empty(history[0].Winner)

	bob, _ := s.storage.GetStats(s.ctx, "bob")
	s.Equal(1, bob.Draws)
}

func (s *RecorderSuite) TestRecordTimePlayedWholeSeconds() {
	s.recorder.RecordTimePlayed("alice", 90*time.Second+900*time.Millisecond)
	s.recorder.RecordTimePlayed("alice", 500*time.Millisecond)
	s.wait()

	stats, _ := s.storage.GetStats(s.ctx, "alice")
	s.Equal(int64(90), stats.TimePlayedSeconds)
}

func (s *RecorderSuite) TestFriendshipLifecycle() {
	s.recorder.CreatePendingFriendship("alice", "bob")
	s.wait()
	s.recorder.AcceptFriendship("alice", "bob")
	s.wait()

	friends, _ := s.storage.ListFriends(s.ctx, "alice")
	s.Require().Len(friends, 1)
	s.Equal(model.FriendshipAccepted, friends[0].Status)
}

func (s *RecorderSuite) TestScoreFailureLoggedAndHistoryKept() {
	logger, logs := testutil.CapturingLogger()
	s.recorder = New(failingStorage{s.storage}, s.clock, time.Second, logger)

	s.recorder.RecordGame("alice", "bob", false)
	s.wait()

	s.Contains(logs.String(), "persistence failed")
	s.Contains(logs.String(), errStorageDown.Error())

	history, err := s.storage.ListMatchHistory(s.ctx, "alice", 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1, "history is written even when the score update fails")
	s.Equal(model.Username("alice"), history[0].Winner)
	s.Contains(logs.String(), `"component":"recorder"`)
}

func (s *RecorderSuite) TestWaitHonoursContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	block := make(chan struct{})
	s.recorder.run("block", func(context.Context) error {
		<-block
		return nil
	})

	s.ErrorIs(s.recorder.Wait(ctx), context.Canceled)
	close(block)
	s.wait()
}
