package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 128
)

// Close codes used by the registries.
const (
	CloseNormal          = websocket.CloseNormalClosure
	CloseSessionReplaced = 4001
	CloseServerShutdown  = websocket.CloseGoingAway
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrBufferExceeded   = errors.New("realtime: connection buffer exceeded")
)

//go:generate go run go.uber.org/mock/mockgen -source=connection.go -destination=../../../mocks/mock_conn.go -package=mocks

// Conn is a live, addressable channel to one connected member.
// Implementations must be safe for concurrent use; Send after Close returns
// an error instead of panicking.
type Conn interface {
	ID() string
	MemberID() int64
	Send(payload []byte) error
	Close(code int, reason string) error
}

// Connection wraps a websocket and coordinates outbound writes via a buffered channel.
type Connection struct {
	id       string
	memberID int64

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	// mu orders Send against Close: once closed is set nothing more is
	// enqueued.
	mu     sync.Mutex
	closed bool
	close  chan struct{}
}

// NewConnection constructs a Connection for the given member.
func NewConnection(memberID int64, ws *websocket.Conn) *Connection {
	return &Connection{
		id:       uuid.NewString(),
		memberID: memberID,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		close:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

var _ Conn = (*Connection)(nil)

func (c *Connection) ID() string      { return c.id }
func (c *Connection) MemberID() int64 { return c.memberID }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the buffer is full,
// the connection is closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	select {
	case c.send <- payload:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()

	_ = c.Close(websocket.CloseGoingAway, "send buffer full")
	return ErrBufferExceeded
}

// Close terminates the connection and stops the write loop. Only the first
// call has an effect; later calls return nil.
func (c *Connection) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.close)
	c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return c.ws.Close()
}

// Done is closed once the write loop has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				_ = c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				_ = c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
