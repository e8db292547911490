package hub

import (
	"sync"
	"time"

	"cargo-market/internal/domain/user"
)

// outboxSize bounds how many undelivered events a single connection may
// buffer before it is considered too slow and evicted.
const outboxSize = 64

// Conn is one live, authenticated client connection. The hub owns the outbox;
// the transport layer drains Events() and calls Disconnect when the socket
// goes away.
type Conn struct {
	ID        string
	UserID    string
	Role      user.Role
	CreatedAt time.Time

	outbox    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(id, userID string, role user.Role) *Conn {
	return &Conn{
		ID:        id,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
		outbox:    make(chan Event, outboxSize),
		closed:    make(chan struct{}),
	}
}

// Events exposes the outbound push stream for the transport writer.
func (conn *Conn) Events() <-chan Event {
	return conn.outbox
}

// Done is closed when the connection has been disconnected or evicted.
func (conn *Conn) Done() <-chan struct{} {
	return conn.closed
}

// deliver enqueues an event without blocking. It reports false when the
// connection is closed or its outbox is full; a full outbox marks the client
// as too slow and the caller evicts it.
func (conn *Conn) deliver(event Event) bool {
	select {
	case <-conn.closed:
		return false
	default:
	}

	select {
	case conn.outbox <- event:
		return true
	default:
		return false
	}
}

// close signals the transport writer to stop. Idempotent.
func (conn *Conn) close() {
	conn.closeOnce.Do(func() { close(conn.closed) })
}
