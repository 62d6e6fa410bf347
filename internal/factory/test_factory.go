package factory

import (
	"time"

	"github.com/mcoot/tictactoe-live/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/realtime"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/storage/memory"
	"github.com/mcoot/tictactoe-live/internal/testutil"
)

// TestSecret signs tokens in test apps
const TestSecret = "test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock   *mocks.MockClock
	MockRandom  *mocks.MockRandom
	MemoryStore *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	authCfg := auth.DefaultConfig()
	authCfg.Secret = TestSecret

	rtCfg := realtime.DefaultConfig()
	rtCfg.PingPeriod = 50 * time.Millisecond
	rtCfg.PongWait = time.Second

	app := newWithDependencies(store, mockClock, mockRandom, authCfg, rtCfg, time.Second, testutil.NopLogger())

	return &TestApp{
		App:         app,
		MockClock:   mockClock,
		MockRandom:  mockRandom,
		MemoryStore: store,
	}
}

// Token issues a bearer token for username
func (t *TestApp) Token(userID int64, username string) (string, error) {
	return t.AuthService.Issue(model.Identity{UserID: userID, Username: model.Username(username)})
}
