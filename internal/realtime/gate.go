package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-live/internal/api/apierr"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/session"
)

// Gate turns authenticated HTTP requests into live sessions.
// The caller has already verified the bearer token; Gate binds the
// identity, upgrades the transport and starts its worker.
type Gate struct {
	registry *session.Registry
	router   *Router
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[*worker]struct{}
	closing bool
	wg      sync.WaitGroup
}

func NewGate(registry *session.Registry, router *Router, cfg Config, logger *slog.Logger) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		registry: registry,
		router:   router,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger.With(slog.String("component", "gate")),
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[*worker]struct{}),
	}
}

// Accept upgrades r for identity. Rejections are written to w as JSON errors.
func (g *Gate) Accept(w http.ResponseWriter, r *http.Request, identity model.Identity) {
	g.mu.Lock()
	closing := g.closing
	g.mu.Unlock()
	if closing {
		apierr.WriteError(w, apierr.NewUnavailableError("Server is shutting down"))
		return
	}

	socket := session.NewSocketID()
	conn, err := g.registry.Bind(socket, identity)
	if err != nil {
		g.logger.Warn("connection rejected",
			slog.String("username", string(identity.Username)),
			slog.Any("reason", err))
		apierr.WriteError(w, err)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		g.registry.Unbind(socket)
		conn.Close()
		g.logger.Warn("websocket upgrade failed",
			slog.String("username", string(identity.Username)),
			slog.Any("error", err))
		return
	}

	wk := newWorker(ws, conn, g.router, g.cfg, g.logger)
	if !g.track(wk) {
		g.router.Disconnect(conn)
		wk.closeGoingAway()
		return
	}

	go wk.writePump()
	go func() {
		defer g.untrack(wk)
		wk.readPump(g.ctx)
	}()

	g.logger.Info("connection accepted",
		slog.String("username", string(identity.Username)),
		slog.String("socket_id", string(socket)))
}

func (g *Gate) track(wk *worker) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.workers[wk] = struct{}{}
	g.wg.Add(1)
	return true
}

func (g *Gate) untrack(wk *worker) {
	g.mu.Lock()
	delete(g.workers, wk)
	g.mu.Unlock()
	g.wg.Done()
}

// Count returns the number of live websocket workers
func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.workers)
}

// Shutdown refuses new sessions, destroys every room without scoring it,
// closes every socket and waits for the workers to finish teardown.
func (g *Gate) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		return errors.New("gate already shut down")
	}
	g.closing = true
	workers := make([]*worker, 0, len(g.workers))
	for wk := range g.workers {
		workers = append(workers, wk)
	}
	g.mu.Unlock()

	g.router.CloseAllRooms()
	for _, wk := range workers {
		wk.closeGoingAway()
	}
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("gate stopped", slog.Int("closed_connections", len(workers)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
