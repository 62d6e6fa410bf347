package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-live/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

var (
	alice = model.Identity{UserID: 1, Username: "alice"}
	bob   = model.Identity{UserID: 2, Username: "bob"}
)

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = NewRegistry(s.clock, 8, testutil.NopLogger())
}

func (s *RegistrySuite) TestBindCreatesConnection() {
	conn, err := s.registry.Bind("sock-1", alice)
	s.Require().NoError(err)

	s.Equal(SocketID("sock-1"), conn.Socket())
	s.Equal(alice, conn.Identity())
	s.Equal(s.clock.Now(), conn.ConnectedAt())
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestBindSamePairIsNoOp() {
	first, err := s.registry.Bind("sock-1", alice)
	s.Require().NoError(err)

	second, err := s.registry.Bind("sock-1", alice)
	s.ErrorIs(err, model.ErrAlreadyBound)
	s.Same(first, second)
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestBindSocketToAnotherIdentityFails() {
	_, _ = s.registry.Bind("sock-1", alice)

	_, err := s.registry.Bind("sock-1", bob)
	s.ErrorIs(err, model.ErrSocketRebind)
}

func (s *RegistrySuite) TestBindIdentityOnSecondSocketFails() {
	_, _ = s.registry.Bind("sock-1", alice)

	_, err := s.registry.Bind("sock-2", alice)
	s.ErrorIs(err, model.ErrAlreadyConnected)
	s.Nil(s.registry.LookupBySocket("sock-2"))
}

func (s *RegistrySuite) TestLookups() {
	conn, _ := s.registry.Bind("sock-1", alice)

	s.Same(conn, s.registry.LookupBySocket("sock-1"))
	s.Same(conn, s.registry.LookupByUsername("alice"))
	s.Nil(s.registry.LookupBySocket("missing"))
	s.Nil(s.registry.LookupByUsername("bob"))
}

func (s *RegistrySuite) TestUnbindRemovesEntry() {
	conn, _ := s.registry.Bind("sock-1", alice)

	removed := s.registry.Unbind("sock-1")
	s.Same(conn, removed)
	s.Nil(s.registry.LookupBySocket("sock-1"))
	s.Nil(s.registry.LookupByUsername("alice"))
	s.Equal(0, s.registry.Count())
}

func (s *RegistrySuite) TestUnbindUnknownSocketReturnsNil() {
	s.Nil(s.registry.Unbind("missing"))
}

func (s *RegistrySuite) TestIdentityCanReconnectAfterUnbind() {
	_, _ = s.registry.Bind("sock-1", alice)
	s.registry.Unbind("sock-1")

	_, err := s.registry.Bind("sock-2", alice)
	s.NoError(err)
}

func (s *RegistrySuite) TestConcurrentBindOnlyOneWins() {
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.registry.Bind(NewSocketID(), alice); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(1, s.registry.Count())
}
