package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/matchmaking"
	"github.com/mcoot/tictactoe-live/internal/services/results"
	"github.com/mcoot/tictactoe-live/internal/services/room"
	"github.com/mcoot/tictactoe-live/internal/session"
)

// FriendshipChecker answers whether two players already have a friendship
type FriendshipChecker interface {
	FriendshipExists(ctx context.Context, a, b model.Username) (bool, error)
}

// Router dispatches inbound envelopes and fans out the resulting events.
// It holds no per-message state; all shared state lives in the registries it is given.
type Router struct {
	registry      *session.Registry
	queue         *matchmaking.Queue
	rooms         *room.Rooms
	friendships   FriendshipChecker
	recorder      *results.Recorder
	clock         clock.Clock
	lookupTimeout time.Duration
	logger        *slog.Logger

	// draining is set once rooms are torn down for shutdown
	draining atomic.Bool
}

func NewRouter(
	registry *session.Registry,
	queue *matchmaking.Queue,
	rooms *room.Rooms,
	friendships FriendshipChecker,
	recorder *results.Recorder,
	clk clock.Clock,
	lookupTimeout time.Duration,
	logger *slog.Logger,
) *Router {
	if lookupTimeout <= 0 {
		lookupTimeout = results.DefaultTimeout
	}
	return &Router{
		registry:      registry,
		queue:         queue,
		rooms:         rooms,
		friendships:   friendships,
		recorder:      recorder,
		clock:         clk,
		lookupTimeout: lookupTimeout,
		logger:        logger.With(slog.String("component", "router")),
	}
}

// Handle processes one raw inbound message from conn.
// Errors are logged here and returned for inspection; the connection stays open regardless.
func (r *Router) Handle(ctx context.Context, conn *session.Connection, data []byte) error {
	env, err := Decode(data)
	if err == nil {
		err = r.dispatch(ctx, conn, env)
	}
	if err != nil {
		r.logError(conn, env.Type, err)
	}
	return err
}

func (r *Router) dispatch(ctx context.Context, conn *session.Connection, env Envelope) error {
	switch env.Type {
	case TypeJoinQueue:
		var p JoinQueuePayload
		if err := decodeFrom(conn, env, &p, &p.Identity); err != nil {
			return err
		}
		return r.joinQueue(conn)

	case TypeMove:
		var p MovePayload
		if err := decodeFrom(conn, env, &p, &p.Identity); err != nil {
			return err
		}
		if p.CellIndex == nil {
			return fmt.Errorf("%w: MOVE without cellIndex", model.ErrMalformedEnvelope)
		}
		return r.move(conn, p.RoomName, *p.CellIndex)

	case TypeVoteRematch:
		var p VoteRematchPayload
		if err := decodeFrom(conn, env, &p, &p.Identity); err != nil {
			return err
		}
		return r.voteRematch(conn, p.RoomName)

	case TypeChat:
		var p ChatPayload
		if err := decodeFrom(conn, env, &p, &p.Identity); err != nil {
			return err
		}
		return r.chat(conn, p.RoomName, p.Text)

	case TypeFriendRequest:
		var p FriendRequestPayload
		if err := decodeFrom(conn, env, &p, &p.Identity); err != nil {
			return err
		}
		return r.friendRequest(ctx, conn, p.RoomName)

	case TypeFriendAccept:
		var p FriendAcceptPayload
		if err := decodeFrom(conn, env, &p, &p.Identity); err != nil {
			return err
		}
		return r.friendAccept(conn, p.OtherIdentity)

	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownMessageType, env.Type)
	}
}

// decodeFrom decodes env into dst and checks the claimed identity belongs to conn
func decodeFrom(conn *session.Connection, env Envelope, dst any, identity *model.Username) error {
	if err := DecodePayload(env, dst); err != nil {
		return err
	}
	if *identity != conn.Username() {
		return fmt.Errorf("%w: payload says %q", model.ErrIdentityMismatch, *identity)
	}
	return nil
}

func (r *Router) joinQueue(conn *session.Connection) error {
	if r.draining.Load() {
		r.logger.Debug("queue join ignored during shutdown",
			slog.String("username", string(conn.Username())))
		return nil
	}
	rm, err := r.queue.Join(conn)
	if errors.Is(err, model.ErrAlreadyQueued) || errors.Is(err, model.ErrAlreadySeated) {
		r.logger.Debug("duplicate queue join ignored",
			slog.String("username", string(conn.Username())),
			slog.Any("reason", err))
		return nil
	}
	if err != nil || rm == nil {
		return err
	}

	rm.Exclusive(func() {
		snap := rm.Snapshot()
		for _, c := range rm.Participants() {
			opponent, _ := rm.OtherParticipant(c.Username())
			r.send(c, TypeGameStarted, GameStartedPayload{
				RoomName:    snap.Name,
				Board:       snap.Board,
				FirstTurn:   snap.FirstTurn,
				FirstMarker: snap.FirstMarker,
				Marker:      snap.MarkerOf(c.Username()),
				Opponent:    opponent.Username(),
			})
		}
	})
	return nil
}

// participantRoom resolves roomName and checks conn is seated in it
func (r *Router) participantRoom(conn *session.Connection, roomName string) (*room.Room, error) {
	rm, err := r.rooms.Get(roomName)
	if err != nil {
		return nil, err
	}
	if !rm.HasParticipant(conn.Username()) {
		return nil, fmt.Errorf("%s in %s: %w", conn.Username(), roomName, model.ErrNotParticipant)
	}
	return rm, nil
}

func (r *Router) move(conn *session.Connection, roomName string, cell int) error {
	rm, err := r.participantRoom(conn, roomName)
	if err != nil {
		return err
	}
	rm.Exclusive(func() {
		err = r.applyMove(conn, rm, cell)
	})
	return err
}

func (r *Router) applyMove(conn *session.Connection, rm *room.Room, cell int) error {
	res, err := rm.ApplyMove(conn.Username(), cell)
	if err != nil {
		return err
	}

	payload := BoardUpdatedPayload{
		Board:      res.Board,
		LastIndex:  res.LastIndex,
		NextTurn:   res.NextTurn,
		NextMarker: res.NextMarker,
	}
	if res.Outcome != nil {
		payload.Outcome = &OutcomePayload{Draw: res.Outcome.Draw}
		if !res.Outcome.Draw {
			winner := res.Outcome.Winner
			payload.Outcome.Winner = &winner
		}
	}
	r.logger.Info("move applied",
		slog.String("room", rm.Name()),
		slog.String("username", string(conn.Username())),
		slog.Int("cell", cell))

	// Dispatch results before notifying players
	if res.Outcome != nil {
		players := rm.Participants()
		if res.Outcome.Draw {
			r.recorder.RecordGame(players[0].Username(), players[1].Username(), true)
		} else {
			loser, _ := rm.OtherParticipant(res.Outcome.Winner)
			r.recorder.RecordGame(res.Outcome.Winner, loser.Username(), false)
		}
		r.logger.Info("game over",
			slog.String("room", rm.Name()),
			slog.String("winner", string(res.Outcome.Winner)),
			slog.Bool("draw", res.Outcome.Draw))
	}

	r.broadcast(rm, TypeBoardUpdated, payload)
	return nil
}

func (r *Router) voteRematch(conn *session.Connection, roomName string) error {
	rm, err := r.participantRoom(conn, roomName)
	if err != nil {
		return err
	}
	rm.Exclusive(func() {
		err = r.applyVote(conn, rm)
	})
	return err
}

func (r *Router) applyVote(conn *session.Connection, rm *room.Room) error {
	res, err := rm.VoteRematch(conn.Username())
	if err != nil {
		return err
	}

	if !res.Reset {
		r.send(res.WaitingOn, TypeRematchRequested, RematchRequestedPayload{By: conn.Username()})
		return nil
	}

	for _, c := range rm.Participants() {
		r.send(c, TypeGameReset, GameResetPayload{
			Board:       res.Snapshot.Board,
			FirstTurn:   res.Snapshot.FirstTurn,
			FirstMarker: res.Snapshot.FirstMarker,
			Marker:      res.Snapshot.MarkerOf(c.Username()),
		})
	}
	r.logger.Info("game reset", slog.String("room", rm.Name()))
	return nil
}

func (r *Router) chat(conn *session.Connection, roomName, text string) error {
	if strings.TrimSpace(text) == "" {
		return model.ErrEmptyMessage
	}
	rm, err := r.participantRoom(conn, roomName)
	if err != nil {
		return err
	}
	rm.Exclusive(func() {
		r.broadcast(rm, TypeChatMessage, ChatMessagePayload{Identity: conn.Username(), Text: text})
	})
	return nil
}

func (r *Router) friendRequest(ctx context.Context, conn *session.Connection, roomName string) error {
	rm, err := r.participantRoom(conn, roomName)
	if err != nil {
		return err
	}
	other, err := rm.OtherParticipant(conn.Username())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	exists, err := r.friendships.FriendshipExists(ctx, conn.Username(), other.Username())
	if err != nil {
		return fmt.Errorf("checking friendship: %w", err)
	}
	if exists {
		r.logger.Debug("friend request skipped, friendship exists",
			slog.String("from", string(conn.Username())),
			slog.String("to", string(other.Username())))
		return nil
	}

	// Deliver only to a live socket; offline players are not queued for later
	if live := r.registry.LookupByUsername(other.Username()); live != nil {
		r.send(live, TypeFriendRequest, FriendRequestNotice{From: conn.Username()})
	}
	r.recorder.CreatePendingFriendship(conn.Username(), other.Username())
	return nil
}

func (r *Router) friendAccept(conn *session.Connection, requester model.Username) error {
	if requester == "" || requester == conn.Username() {
		return fmt.Errorf("%w: invalid otherIdentity %q", model.ErrMalformedEnvelope, requester)
	}
	r.recorder.AcceptFriendship(requester, conn.Username())
	return nil
}

// Disconnect tears down everything conn owned. Safe to call more than once.
func (r *Router) Disconnect(conn *session.Connection) {
	username := conn.Username()
	logger := r.logger.With(
		slog.String("username", string(username)),
		slog.String("socket_id", string(conn.Socket())))

	if r.registry.Unbind(conn.Socket()) == nil {
		conn.Close()
		return
	}
	defer conn.Close()

	r.queue.RemoveIfQueued(conn)

	if rm := r.rooms.RoomFor(username); rm != nil && seatedAs(rm, conn) {
		rm.Exclusive(func() {
			other, concluded, err := rm.Close(username)
			r.rooms.Remove(rm)
			if err != nil {
				return
			}
			r.send(other, TypeOpponentDisconnected, OpponentDisconnectedPayload{Identity: username})
			forfeit := !concluded && !r.draining.Load()
			if forfeit {
				r.recorder.RecordGame(other.Username(), username, false)
			}
			logger.Info("room closed by disconnect",
				slog.String("room", rm.Name()),
				slog.Bool("forfeit", forfeit))
		})
	}

	r.recorder.RecordTimePlayed(username, clock.Elapsed(r.clock, conn.ConnectedAt()))
	logger.Info("connection closed")
}

// CloseAllRooms stops new pairings and destroys every live room without
// recording results. Rooms closed by a later disconnect are not scored either.
func (r *Router) CloseAllRooms() int {
	r.draining.Store(true)
	rooms := r.rooms.All()
	for _, rm := range rooms {
		players := rm.Participants()
		rm.Exclusive(func() {
			_, _, _ = rm.Close(players[0].Username())
			r.rooms.Remove(rm)
		})
	}
	if len(rooms) > 0 {
		r.logger.Info("rooms closed for shutdown", slog.Int("count", len(rooms)))
	}
	return len(rooms)
}

func seatedAs(rm *room.Room, conn *session.Connection) bool {
	for _, c := range rm.Participants() {
		if c == conn {
			return true
		}
	}
	return false
}

func (r *Router) broadcast(rm *room.Room, t MessageType, payload any) {
	for _, c := range rm.Participants() {
		r.send(c, t, payload)
	}
}

func (r *Router) send(conn *session.Connection, t MessageType, payload any) {
	msg, err := Encode(t, payload)
	if err != nil {
		r.logger.Error("failed to encode message", slog.String("type", string(t)), slog.Any("error", err))
		return
	}
	if !conn.Send(msg) {
		r.logger.Warn("message dropped - client buffer full or closed",
			slog.String("type", string(t)),
			slog.String("username", string(conn.Username())))
	}
}

func (r *Router) logError(conn *session.Connection, t MessageType, err error) {
	attrs := []any{
		slog.String("username", string(conn.Username())),
		slog.String("type", string(t)),
		slog.Any("error", err),
	}
	switch {
	case errors.Is(err, model.ErrEmptyMessage):
		r.logger.Debug("empty chat dropped", attrs...)
	case isRuleError(err):
		r.logger.Info("message rejected", attrs...)
	case isProtocolError(err):
		r.logger.Warn("message dropped", attrs...)
	default:
		r.logger.Error("message failed", attrs...)
	}
}

func isRuleError(err error) bool {
	for _, target := range []error{
		model.ErrInvalidMove, model.ErrNotYourTurn, model.ErrGameOver,
		model.ErrDuplicateVote, model.ErrNotParticipant, model.ErrRoomClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isProtocolError(err error) bool {
	for _, target := range []error{
		model.ErrMalformedEnvelope, model.ErrUnknownMessageType,
		model.ErrIdentityMismatch, model.ErrRoomNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
