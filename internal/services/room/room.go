package room

import (
	"fmt"
	"sync"

	"github.com/mcoot/tictactoe-live/internal/dependencies/random"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/board"
	"github.com/mcoot/tictactoe-live/internal/session"
)

// State is the phase of a room's game
type State string

const (
	StateActive          State = "active"
	StateAwaitingRematch State = "awaiting_rematch"
	StateClosed          State = "closed"
)

// Outcome is the terminal result of a game
type Outcome struct {
	Winner model.Username // Empty on a draw
	Draw   bool
}

// Snapshot is a consistent copy of a room's game state
type Snapshot struct {
	Name        string
	Board       board.Board
	Turn        model.Username
	TurnMarker  board.Marker
	FirstTurn   model.Username
	FirstMarker board.Marker
	LastIndex   *int
	Outcome     *Outcome
	State       State
	markers     map[model.Username]board.Marker
}

// MarkerOf returns the marker a participant plays with this game
func (s Snapshot) MarkerOf(username model.Username) board.Marker {
	return s.markers[username]
}

// MoveResult is returned by a successful ApplyMove
type MoveResult struct {
	Board      board.Board
	LastIndex  int
	NextTurn   model.Username
	NextMarker board.Marker
	Outcome    *Outcome
}

// RematchResult is returned by a successful VoteRematch
type RematchResult struct {
	// Reset is true when the second distinct vote restarted the game
	Reset bool
	// WaitingOn is the participant who has not voted yet (nil when Reset)
	WaitingOn *session.Connection
	// Snapshot is the fresh game when Reset
	Snapshot Snapshot
}

// Room owns one two-player game. All methods are safe for concurrent use;
// every state transition happens under the room's own lock.
type Room struct {
	name    string
	playerA *session.Connection
	playerB *session.Connection
	random  random.Random

	// events orders transitions together with the messages they produce
	events sync.Mutex

	mu          sync.Mutex
	board       board.Board
	turn        model.Username
	turnMarker  board.Marker
	firstTurn   model.Username
	firstMarker board.Marker
	markers     map[model.Username]board.Marker
	lastIndex   int
	outcome     *Outcome
	votes       map[model.Username]struct{}
	state       State
}

// Name derives the room name from its two participants
func Name(a, b model.Username) string {
	return string(a) + "+" + string(b)
}

// New creates a room for two participants and starts the first game.
// The first mover and the first marker are picked uniformly at random.
func New(playerA, playerB *session.Connection, rnd random.Random) *Room {
	r := &Room{
		name:    Name(playerA.Username(), playerB.Username()),
		playerA: playerA,
		playerB: playerB,
		random:  rnd,
	}
	r.start()
	return r
}

// start resets the game. Caller must hold mu (or own r exclusively).
func (r *Room) start() {
	first := r.playerA.Username()
	if r.random.Intn(2) == 1 {
		first = r.playerB.Username()
	}
	marker := board.O
	if r.random.Intn(2) == 1 {
		marker = board.X
	}

	r.board = board.Board{}
	r.turn = first
	r.turnMarker = marker
	r.firstTurn = first
	r.firstMarker = marker
	r.markers = map[model.Username]board.Marker{
		first:          marker,
		r.other(first): marker.Other(),
	}
	r.lastIndex = -1
	r.outcome = nil
	r.votes = make(map[model.Username]struct{})
	r.state = StateActive
}

// Name returns the room's unique name
func (r *Room) Name() string {
	return r.name
}

// Exclusive runs fn with the room's event lock held.
// Transitions made and messages queued inside fn reach both clients in the
// order the transitions happened. fn must not block.
func (r *Room) Exclusive(fn func()) {
	r.events.Lock()
	defer r.events.Unlock()
	fn()
}

// Participants returns both connections in creation order
func (r *Room) Participants() [2]*session.Connection {
	return [2]*session.Connection{r.playerA, r.playerB}
}

// HasParticipant reports whether username is seated in this room
func (r *Room) HasParticipant(username model.Username) bool {
	return r.playerA.Username() == username || r.playerB.Username() == username
}

// OtherParticipant returns the connection of the opponent of username
func (r *Room) OtherParticipant(of model.Username) (*session.Connection, error) {
	switch of {
	case r.playerA.Username():
		return r.playerB, nil
	case r.playerB.Username():
		return r.playerA, nil
	default:
		return nil, fmt.Errorf("%s in room %s: %w", of, r.name, model.ErrNotParticipant)
	}
}

// other returns the opponent's username; of must be a participant
func (r *Room) other(of model.Username) model.Username {
	if of == r.playerA.Username() {
		return r.playerB.Username()
	}
	return r.playerA.Username()
}

// ApplyMove places the current turn's marker at cell on behalf of by
func (r *Room) ApplyMove(by model.Username, cell int) (MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return MoveResult{}, model.ErrRoomClosed
	}
	if !r.HasParticipant(by) {
		return MoveResult{}, model.ErrNotParticipant
	}
	if r.outcome != nil {
		return MoveResult{}, model.ErrGameOver
	}
	if by != r.turn {
		return MoveResult{}, model.ErrNotYourTurn
	}

	next, err := board.ApplyMove(r.board, cell, r.turnMarker)
	if err != nil {
		return MoveResult{}, err
	}
	r.board = next
	r.lastIndex = cell

	if winner := board.WinningLine(r.board); winner != board.Empty {
		r.outcome = &Outcome{Winner: r.ownerOf(winner)}
		r.state = StateAwaitingRematch
	} else if board.IsDrawn(r.board) {
		r.outcome = &Outcome{Draw: true}
		r.state = StateAwaitingRematch
	}

	r.turn = r.other(r.turn)
	r.turnMarker = r.turnMarker.Other()

	return MoveResult{
		Board:      r.board,
		LastIndex:  r.lastIndex,
		NextTurn:   r.turn,
		NextMarker: r.turnMarker,
		Outcome:    copyOutcome(r.outcome),
	}, nil
}

// ownerOf returns the participant playing marker
func (r *Room) ownerOf(marker board.Marker) model.Username {
	for username, m := range r.markers {
		if m == marker {
			return username
		}
	}
	return ""
}

// VoteRematch records by's vote to play again.
// The second distinct vote resets the board to a fresh random start.
func (r *Room) VoteRematch(by model.Username) (RematchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return RematchResult{}, model.ErrRoomClosed
	}
	if !r.HasParticipant(by) {
		return RematchResult{}, model.ErrNotParticipant
	}
	if _, voted := r.votes[by]; voted {
		return RematchResult{}, model.ErrDuplicateVote
	}

	r.votes[by] = struct{}{}
	if len(r.votes) < 2 {
		waiting, _ := r.OtherParticipant(by)
		return RematchResult{WaitingOn: waiting}, nil
	}

	r.start()
	return RematchResult{Reset: true, Snapshot: r.snapshot()}, nil
}

// Close marks the room closed because by left.
// concluded reports whether the current game already had an outcome.
func (r *Room) Close(by model.Username) (other *session.Connection, concluded bool, err error) {
	other, err = r.OtherParticipant(by)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return other, true, model.ErrRoomClosed
	}
	concluded = r.outcome != nil
	r.state = StateClosed
	return other, concluded, nil
}

// Snapshot returns a copy of the current game state
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Room) snapshot() Snapshot {
	var last *int
	if r.lastIndex >= 0 {
		idx := r.lastIndex
		last = &idx
	}
	markers := make(map[model.Username]board.Marker, len(r.markers))
	for k, v := range r.markers {
		markers[k] = v
	}
	return Snapshot{
		Name:        r.name,
		Board:       r.board,
		Turn:        r.turn,
		TurnMarker:  r.turnMarker,
		FirstTurn:   r.firstTurn,
		FirstMarker: r.firstMarker,
		LastIndex:   last,
		Outcome:     copyOutcome(r.outcome),
		State:       r.state,
		markers:     markers,
	}
}

func copyOutcome(o *Outcome) *Outcome {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
