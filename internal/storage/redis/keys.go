package redis

import (
	"fmt"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "ttt"

// Hash fields of a stats key
const (
	fieldWins       = "wins"
	fieldLosses     = "losses"
	fieldDraws      = "draws"
	fieldTimePlayed = "time_played_seconds"
)

// statsKey returns the Redis key for a player's stats HASH
func statsKey(username model.Username) string {
	return fmt.Sprintf("%s:stats:%s", keyPrefix, username)
}

// historyKey returns the Redis key for a player's match history LIST (newest first)
func historyKey(username model.Username) string {
	return fmt.Sprintf("%s:history:%s", keyPrefix, username)
}

// friendshipKey returns the Redis key for the friendship between a and b, in either order
func friendshipKey(a, b model.Username) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s:friendship:%s:%s", keyPrefix, a, b)
}

// friendsIndexKey returns the Redis key for the SET of friendship keys involving username
func friendsIndexKey(username model.Username) string {
	return fmt.Sprintf("%s:idx:friends:%s", keyPrefix, username)
}
