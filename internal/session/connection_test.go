package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tictactoe-live/internal/model"
)

func TestConnectionSendQueuesMessages(t *testing.T) {
	conn := NewConnection("sock", model.Identity{Username: "alice"}, time.Now(), 2)

	require.True(t, conn.Send([]byte("one")))
	require.True(t, conn.Send([]byte("two")))

	assert.Equal(t, []byte("one"), <-conn.Outbox())
	assert.Equal(t, []byte("two"), <-conn.Outbox())
}

func TestConnectionSendDropsWhenFull(t *testing.T) {
	conn := NewConnection("sock", model.Identity{Username: "alice"}, time.Now(), 1)

	assert.True(t, conn.Send([]byte("one")))
	assert.False(t, conn.Send([]byte("two")))
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	conn := NewConnection("sock", model.Identity{Username: "alice"}, time.Now(), 1)

	conn.Close()
	conn.Close()

	assert.True(t, conn.Closed())
	assert.False(t, conn.Send([]byte("late")))

	_, ok := <-conn.Outbox()
	assert.False(t, ok, "outbox should be closed")
}

func TestNewConnectionDefaultsBuffer(t *testing.T) {
	conn := NewConnection("sock", model.Identity{Username: "alice"}, time.Now(), 0)
	assert.Equal(t, DefaultSendBuffer, cap(conn.send))
}

func TestNewSocketIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewSocketID(), NewSocketID())
}
