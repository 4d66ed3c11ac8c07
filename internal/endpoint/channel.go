package endpoint

import (
	"fmt"
	"net"

	"github.com/google/uuid"
)

// Channel is one logical send/receive path within a connection. Replies
// to an envelope are written back on the channel that produced it.
type Channel interface {
	ID() string
	Write(p []byte) (int, error)
	Close() error
	RemoteAddr() string
}

// Handler receives a channel's stream one byte at a time, plus its
// asynchronous faults. Delivery is single-threaded per channel.
type Handler interface {
	HandleByte(ch Channel, b byte)
	HandleError(ch Channel, e Error)
}

// Error is one asynchronous connection fault. It is terminal for the
// connection it names, never for the owning process.
type Error struct {
	Code    int
	Message string
	Source  string
}

const (
	CodeReadFailure = iota + 1
	CodeWriteFailure
	CodeDialFailure
)

func (e Error) Error() string {
	return fmt.Sprintf("endpoint: code=%d source=%s: %s", e.Code, e.Source, e.Message)
}

type connChannel struct {
	id   string
	conn net.Conn
}

func newConnChannel(conn net.Conn) *connChannel {
	return &connChannel{
		id:   uuid.NewString(),
		conn: conn,
	}
}

func (c *connChannel) ID() string {
	return c.id
}

func (c *connChannel) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *connChannel) Close() error {
	return c.conn.Close()
}

func (c *connChannel) RemoteAddr() string {
	if c.conn.RemoteAddr() == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}
