package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// DefaultSendBuffer is the outbound queue length of a connection
const DefaultSendBuffer = 64

// SocketID identifies one live transport
type SocketID string

// NewSocketID returns a fresh random socket id
func NewSocketID() SocketID {
	return SocketID(uuid.NewString())
}

// Connection is one live transport session bound to an identity.
// Outbound messages are queued on a buffered channel drained by the transport writer.
type Connection struct {
	socket      SocketID
	identity    model.Identity
	connectedAt time.Time

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewConnection creates a connection with an outbound buffer of the given size
func NewConnection(socket SocketID, identity model.Identity, connectedAt time.Time, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Connection{
		socket:      socket,
		identity:    identity,
		connectedAt: connectedAt,
		send:        make(chan []byte, bufferSize),
	}
}

// Socket returns the transport handle
func (c *Connection) Socket() SocketID {
	return c.socket
}

// Identity returns the bound identity
func (c *Connection) Identity() model.Identity {
	return c.identity
}

// Username returns the bound username
func (c *Connection) Username() model.Username {
	return c.identity.Username
}

// ConnectedAt returns when the transport handshake completed
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// Send queues a message without blocking.
// Returns false if the connection is closed or its buffer is full.
func (c *Connection) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Outbox returns the channel the transport writer drains.
// It is closed once Close is called.
func (c *Connection) Outbox() <-chan []byte {
	return c.send
}

// Close stops accepting messages and closes the outbox. Safe to call repeatedly.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Closed reports whether Close has been called
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
