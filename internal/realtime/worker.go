package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-live/internal/session"
)

// Config tunes the websocket transport
type Config struct {
	// SendBuffer is the outbound queue length per connection
	SendBuffer int
	// PingPeriod must be shorter than PongWait
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	// MaxMessageBytes caps a single inbound frame
	MaxMessageBytes int64
}

// DefaultConfig returns the transport defaults
func DefaultConfig() Config {
	return Config{
		SendBuffer:      session.DefaultSendBuffer,
		PingPeriod:      54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 4096,
	}
}

// worker pumps one websocket. The read side is the connection's single
// inbound worker, so messages from one connection are handled strictly in order.
type worker struct {
	ws     *websocket.Conn
	conn   *session.Connection
	router *Router
	cfg    Config
	logger *slog.Logger
}

func newWorker(ws *websocket.Conn, conn *session.Connection, router *Router, cfg Config, logger *slog.Logger) *worker {
	return &worker{
		ws:     ws,
		conn:   conn,
		router: router,
		cfg:    cfg,
		logger: logger.With(
			slog.String("username", string(conn.Username())),
			slog.String("socket_id", string(conn.Socket()))),
	}
}

// readPump handles inbound frames until the transport fails, then tears the session down
func (w *worker) readPump(ctx context.Context) {
	defer func() {
		w.router.Disconnect(w.conn)
		_ = w.ws.Close()
	}()

	w.ws.SetReadLimit(w.cfg.MaxMessageBytes)
	if err := w.ws.SetReadDeadline(time.Now().Add(w.cfg.PongWait)); err != nil {
		w.logger.Error("failed to set read deadline", slog.Any("error", err))
	}
	w.ws.SetPongHandler(func(string) error {
		return w.ws.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	})

	for {
		messageType, data, err := w.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				w.logger.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			w.logger.Debug("non-text frame ignored", slog.Int("frame_type", messageType))
			continue
		}
		_ = w.router.Handle(ctx, w.conn, data)
	}
}

// writePump drains the connection's outbox and keeps the peer alive with pings
func (w *worker) writePump() {
	ticker := time.NewTicker(w.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = w.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-w.conn.Outbox():
			_ = w.ws.SetWriteDeadline(time.Now().Add(w.cfg.WriteWait))
			if !ok {
				// Outbox closed by teardown
				_ = w.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := w.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.logger.Warn("websocket write error", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = w.ws.SetWriteDeadline(time.Now().Add(w.cfg.WriteWait))
			if err := w.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeGoingAway tells the peer the server is leaving and drops the transport
func (w *worker) closeGoingAway() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = w.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.cfg.WriteWait))
	_ = w.ws.Close()
}
