package model

import "errors"

// Common errors used across the application
var (
	// Protocol errors
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrIdentityMismatch   = errors.New("payload identity does not match connection")
	ErrRoomNotFound       = errors.New("room not found")
	ErrEmptyMessage       = errors.New("message text is empty")

	// Registry errors
	ErrAlreadyBound     = errors.New("socket is already bound to this identity")
	ErrSocketRebind     = errors.New("socket is already bound to another identity")
	ErrAlreadyConnected = errors.New("identity already has a live connection")

	// Queue errors
	ErrAlreadyQueued = errors.New("identity is already queued")
	ErrAlreadySeated = errors.New("identity is already seated in a room")

	// Game rule errors
	ErrInvalidMove    = errors.New("invalid move")
	ErrNotYourTurn    = errors.New("not this player's turn")
	ErrGameOver       = errors.New("game is already over")
	ErrDuplicateVote  = errors.New("player has already voted for a rematch")
	ErrNotParticipant = errors.New("player is not a participant in this room")
	ErrRoomClosed     = errors.New("room is closed")

	// Persistence errors
	ErrPlayerNotFound     = errors.New("player not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrSelfFriendship     = errors.New("cannot befriend oneself")
)
