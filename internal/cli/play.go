package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/realtime"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/services/board"
)

var errQuit = errors.New("quit")

func newPlayCmd() *cobra.Command {
	var noJoin bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play interactively over the realtime connection",
		Long: `Connect to the server's websocket, join the matchmaking queue and play.

Commands (one per line):
  join          join the matchmaking queue
  move N        place your marker in cell N (0-8, row-major)
  chat TEXT     send a chat message to your opponent
  rematch       vote for a rematch
  friend        send your opponent a friend request
  accept USER   accept USER's friend request
  quit          disconnect

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token == "" {
				return fmt.Errorf("no token: run 'tttctl token' or pass --token")
			}
			username, err := usernameFromToken(cfg.Token)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return play(ctx, username, !noJoin, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&noJoin, "no-join", false, "Do not join the queue on connect")

	return cmd
}

// usernameFromToken reads the username claim without verifying the signature
func usernameFromToken(token string) (model.Username, error) {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("unreadable token: %w", err)
	}
	if claims.Username == "" {
		return "", fmt.Errorf("token has no username claim")
	}
	return model.Username(claims.Username), nil
}

func play(ctx context.Context, username model.Username, join bool, in io.Reader, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, client.WebSocketURL(), client.AuthHeader())
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("connection rejected: %w", responseError(resp.StatusCode, body))
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = ws.Close() }()

	session := newPlaySession(username, out)
	session.printf("Connected as %s\n", username)

	// Writes come from the stdin loop only
	send := func(t realtime.MessageType, payload any) error {
		data, err := realtime.Encode(t, payload)
		if err != nil {
			return err
		}
		return ws.WriteMessage(websocket.TextMessage, data)
	}

	if join {
		if err := send(realtime.TypeJoinQueue, realtime.JoinQueuePayload{Identity: username}); err != nil {
			return err
		}
		session.printf("Waiting for an opponent...\n")
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			session.observe(data)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return closeGracefully(ws, session)
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session.printf("Server closed the connection\n")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				return closeGracefully(ws, session)
			}
			t, payload, err := session.command(line)
			if errors.Is(err, errQuit) {
				return closeGracefully(ws, session)
			}
			if err != nil {
				session.printf("%s\n", err)
				continue
			}
			if t == "" {
				continue
			}
			if err := send(t, payload); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func closeGracefully(ws *websocket.Conn, session *playSession) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	session.printf("Disconnected\n")
	return nil
}

// playSession tracks the room the player is seated in and renders server messages
type playSession struct {
	username model.Username

	mu   sync.Mutex
	out  io.Writer
	room string
}

func newPlaySession(username model.Username, out io.Writer) *playSession {
	return &playSession{username: username, out: out}
}

func (p *playSession) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *playSession) currentRoom() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.room == "" {
		return "", fmt.Errorf("not in a game yet")
	}
	return p.room, nil
}

// command parses one input line into an outbound message.
// An empty type means there is nothing to send.
func (p *playSession) command(line string) (realtime.MessageType, any, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "":
		return "", nil, nil
	case "quit", "exit":
		return "", nil, errQuit
	case "join":
		return realtime.TypeJoinQueue, realtime.JoinQueuePayload{Identity: p.username}, nil
	case "accept":
		if rest == "" {
			return "", nil, fmt.Errorf("usage: accept USER")
		}
		return realtime.TypeFriendAccept, realtime.FriendAcceptPayload{
			Identity:      p.username,
			OtherIdentity: model.Username(rest),
		}, nil
	}

	roomName, err := p.currentRoom()
	if err != nil {
		return "", nil, err
	}

	switch strings.ToLower(verb) {
	case "move":
		cell, err := strconv.Atoi(rest)
		if err != nil || cell < 0 || cell >= board.Size {
			return "", nil, fmt.Errorf("usage: move N (0-8)")
		}
		return realtime.TypeMove, realtime.MovePayload{RoomName: roomName, CellIndex: &cell, Identity: p.username}, nil
	case "chat":
		if rest == "" {
			return "", nil, fmt.Errorf("usage: chat TEXT")
		}
		return realtime.TypeChat, realtime.ChatPayload{RoomName: roomName, Identity: p.username, Text: rest}, nil
	case "rematch":
		return realtime.TypeVoteRematch, realtime.VoteRematchPayload{RoomName: roomName, Identity: p.username}, nil
	case "friend":
		return realtime.TypeFriendRequest, realtime.FriendRequestPayload{RoomName: roomName, Identity: p.username}, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", verb)
	}
}

// observe renders one server envelope and tracks room membership
func (p *playSession) observe(data []byte) {
	env, err := realtime.Decode(data)
	if err != nil {
		p.printf("? %s\n", data)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.out

	switch env.Type {
	case realtime.TypeGameStarted:
		var m realtime.GameStartedPayload
		if realtime.DecodePayload(env, &m) != nil {
			break
		}
		p.room = m.RoomName
		fmt.Fprintf(w, "Game started against %s in room %s. You are %s.\n", m.Opponent, m.RoomName, m.Marker)
		renderBoard(w, m.Board)
		fmt.Fprintf(w, "%s moves first (%s)\n", m.FirstTurn, m.FirstMarker)
		return

	case realtime.TypeBoardUpdated:
		var m realtime.BoardUpdatedPayload
		if realtime.DecodePayload(env, &m) != nil {
			break
		}
		renderBoard(w, m.Board)
		switch {
		case m.Outcome == nil && m.NextTurn == p.username:
			fmt.Fprintf(w, "Your move (%s)\n", m.NextMarker)
		case m.Outcome == nil:
			fmt.Fprintf(w, "%s to move (%s)\n", m.NextTurn, m.NextMarker)
		case m.Outcome.Draw:
			fmt.Fprintln(w, "Draw. Type 'rematch' to play again.")
		case m.Outcome.Winner != nil:
			fmt.Fprintf(w, "%s wins. Type 'rematch' to play again.\n", *m.Outcome.Winner)
		}
		return

	case realtime.TypeRematchRequested:
		var m realtime.RematchRequestedPayload
		if realtime.DecodePayload(env, &m) != nil {
			break
		}
		fmt.Fprintf(w, "%s wants a rematch. Type 'rematch' to accept.\n", m.By)
		return

	case realtime.TypeGameReset:
		var m realtime.GameResetPayload
		if realtime.DecodePayload(env, &m) != nil {
			break
		}
		fmt.Fprintf(w, "New game. You are %s.\n", m.Marker)
		renderBoard(w, m.Board)
		fmt.Fprintf(w, "%s moves first (%s)\n", m.FirstTurn, m.FirstMarker)
		return

	case realtime.TypeChatMessage:
		var m realtime.ChatMessagePayload
		if realtime.DecodePayload(env, &m) != nil {
			break
		}
		fmt.Fprintf(w, "<%s> %s\n", m.Identity, m.Text)
		return

	case realtime.TypeFriendRequest:
		var m realtime.FriendRequestNotice
		if realtime.DecodePayload(env, &m) != nil {
			break
		}
		fmt.Fprintf(w, "%s sent you a friend request. Type 'accept %s'.\n", m.From, m.From)
		return

	case realtime.TypeOpponentDisconnected:
		var m realtime.OpponentDisconnectedPayload
		if realtime.DecodePayload(env, &m) != nil {
			break
		}
		p.room = ""
		fmt.Fprintf(w, "%s disconnected. Type 'join' to find a new game.\n", m.Identity)
		return
	}

	fmt.Fprintf(w, "%s: %s\n", env.Type, env.Payload)
}

func renderBoard(w io.Writer, b board.Board) {
	for row := 0; row < 3; row++ {
		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			idx := row*3 + col
			if b[idx] == board.Empty {
				cells[col] = strconv.Itoa(idx)
			} else {
				cells[col] = string(b[idx])
			}
		}
		fmt.Fprintf(w, " %s\n", strings.Join(cells, " | "))
		if row < 2 {
			fmt.Fprintln(w, "---+---+---")
		}
	}
}
