package results

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// DefaultTimeout bounds a single persistence call
const DefaultTimeout = 5 * time.Second

// Recorder runs persistence side effects in the background.
// Calls return immediately; failures are logged and never retried.
type Recorder struct {
	storage storage.Storage
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

func New(store storage.Storage, clk clock.Clock, timeout time.Duration, logger *slog.Logger) *Recorder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Recorder{
		storage: store,
		clock:   clk,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "recorder")),
	}
}

// RecordGame updates both players' scores and appends the match to their history.
// The two writes are independent; one failing does not stop the other.
// On a draw winner and loser are just the two players.
func (r *Recorder) RecordGame(winner, loser model.Username, draw bool) {
	record := &model.MatchRecord{
		ID:         uuid.NewString(),
		Players:    [2]model.Username{winner, loser},
		Draw:       draw,
		FinishedAt: r.clock.Now(),
	}
	if !draw {
		record.Winner = winner
		record.Loser = loser
	}

	attrs := []slog.Attr{
		slog.String("winner", string(winner)),
		slog.String("loser", string(loser)),
		slog.Bool("draw", draw),
	}
	r.run("record result", func(ctx context.Context) error {
		return r.storage.RecordResult(ctx, winner, loser, draw)
	}, attrs...)
	r.run("append match history", func(ctx context.Context) error {
		return r.storage.AppendMatchHistory(ctx, record)
	}, append(attrs, slog.String("match_id", record.ID))...)
}

// RecordTimePlayed adds elapsed, in whole seconds, to username's play time
func (r *Recorder) RecordTimePlayed(username model.Username, elapsed time.Duration) {
	seconds := int64(elapsed / time.Second)
	if seconds <= 0 {
		return
	}
	r.run("add time played", func(ctx context.Context) error {
		return r.storage.AddTimePlayed(ctx, username, seconds)
	}, slog.String("username", string(username)), slog.Int64("seconds", seconds))
}

// CreatePendingFriendship stores a friend request from requester to addressee
func (r *Recorder) CreatePendingFriendship(requester, addressee model.Username) {
	at := r.clock.Now()
	r.run("create friendship", func(ctx context.Context) error {
		return r.storage.CreatePendingFriendship(ctx, requester, addressee, at)
	}, slog.String("requester", string(requester)), slog.String("addressee", string(addressee)))
}

// AcceptFriendship marks requester's pending request to addressee accepted
func (r *Recorder) AcceptFriendship(requester, addressee model.Username) {
	at := r.clock.Now()
	r.run("accept friendship", func(ctx context.Context) error {
		return r.storage.AcceptFriendship(ctx, requester, addressee, at)
	}, slog.String("requester", string(requester)), slog.String("addressee", string(addressee)))
}

// Wait blocks until every in-flight call finishes or ctx is done
func (r *Recorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run(op string, fn func(ctx context.Context) error, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("op", op))
	for _, a := range attrs {
		args = append(args, a)
	}
	logger := r.logger.With(args...)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("persistence panic", slog.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.Error("persistence failed", slog.Any("error", err))
			return
		}
		logger.Debug("persisted")
	}()
}
