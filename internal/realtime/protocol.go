package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/board"
)

// MessageType is the type tag of an envelope
type MessageType string

// Inbound message types
const (
	TypeJoinQueue     MessageType = "JOIN_QUEUE"
	TypeMove          MessageType = "MOVE"
	TypeVoteRematch   MessageType = "VOTE_REMATCH"
	TypeChat          MessageType = "CHAT"
	TypeFriendRequest MessageType = "FRIEND_REQUEST"
	TypeFriendAccept  MessageType = "FRIEND_ACCEPT"
)

// Outbound message types. FRIEND_REQUEST is also delivered outbound.
const (
	TypeGameStarted          MessageType = "GAME_STARTED"
	TypeBoardUpdated         MessageType = "BOARD_UPDATED"
	TypeRematchRequested     MessageType = "REMATCH_REQUESTED"
	TypeGameReset            MessageType = "GAME_RESET"
	TypeChatMessage          MessageType = "CHAT_MESSAGE"
	TypeOpponentDisconnected MessageType = "OPPONENT_DISCONNECTED"
)

// Envelope is the unit exchanged over the socket
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound payloads

type JoinQueuePayload struct {
	Identity model.Username `json:"identity"`
}

type MovePayload struct {
	RoomName  string         `json:"roomName"`
	CellIndex *int           `json:"cellIndex"`
	Identity  model.Username `json:"identity"`
}

type VoteRematchPayload struct {
	RoomName string         `json:"roomName"`
	Identity model.Username `json:"identity"`
}

type ChatPayload struct {
	RoomName string         `json:"roomName"`
	Identity model.Username `json:"identity"`
	Text     string         `json:"text"`
}

type FriendRequestPayload struct {
	RoomName string         `json:"roomName"`
	Identity model.Username `json:"identity"`
}

type FriendAcceptPayload struct {
	Identity      model.Username `json:"identity"`
	OtherIdentity model.Username `json:"otherIdentity"`
}

// Outbound payloads

type GameStartedPayload struct {
	RoomName    string         `json:"roomName"`
	Board       board.Board    `json:"board"`
	FirstTurn   model.Username `json:"firstTurn"`
	FirstMarker board.Marker   `json:"firstMarker"`
	Marker      board.Marker   `json:"marker"`
	Opponent    model.Username `json:"opponent"`
}

type OutcomePayload struct {
	Winner *model.Username `json:"winner"`
	Draw   bool            `json:"draw"`
}

type BoardUpdatedPayload struct {
	Board      board.Board     `json:"board"`
	LastIndex  int             `json:"lastIndex"`
	NextTurn   model.Username  `json:"nextTurn"`
	NextMarker board.Marker    `json:"nextMarker"`
	Outcome    *OutcomePayload `json:"outcome"`
}

type RematchRequestedPayload struct {
	By model.Username `json:"by"`
}

type GameResetPayload struct {
	Board       board.Board    `json:"board"`
	FirstTurn   model.Username `json:"firstTurn"`
	FirstMarker board.Marker   `json:"firstMarker"`
	Marker      board.Marker   `json:"marker"`
}

type ChatMessagePayload struct {
	Identity model.Username `json:"identity"`
	Text     string         `json:"text"`
}

type FriendRequestNotice struct {
	From model.Username `json:"from"`
}

type OpponentDisconnectedPayload struct {
	Identity model.Username `json:"identity"`
}

// Encode wraps payload in an envelope of type t
func Encode(t MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Decode parses an envelope; the payload is left raw
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", model.ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", model.ErrMalformedEnvelope)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into dst
func DecodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", model.ErrMalformedEnvelope, env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", model.ErrMalformedEnvelope, env.Type, err)
	}
	return nil
}
