package model

import "time"

// PlayerStats is the persisted scoreboard for a single player
type PlayerStats struct {
	Username          Username `json:"username"`
	Wins              int      `json:"wins"`
	Losses            int      `json:"losses"`
	Draws             int      `json:"draws"`
	TimePlayedSeconds int64    `json:"timePlayedSeconds"`
}

// MatchRecord is one finished game in a player's match history
type MatchRecord struct {
	ID         string      `json:"id"`
	Winner     Username    `json:"winner,omitempty"` // Empty on a draw
	Loser      Username    `json:"loser,omitempty"`  // Empty on a draw
	Players    [2]Username `json:"players"`
	Draw       bool        `json:"draw"`
	FinishedAt time.Time   `json:"finishedAt"`
}

// FriendshipStatus is the state of a friendship between two players
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship links a requester to an addressee
type Friendship struct {
	Requester Username         `json:"requester"`
	Addressee Username         `json:"addressee"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
