package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	realtimeTypes "github.com/termfix/termfix/pkg/realtime"
)

const outboundQueueSize = 64

// Client is one websocket subscriber. Outbound messages pass through a
// bounded queue that is never closed, so a publish racing a disconnect
// degrades to a dropped message instead of a panic. Shutdown is
// signalled on done; WriteLoop exits and pending messages are discarded.
type Client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan realtimeTypes.ServerEnvelope
	done   chan struct{}
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan realtimeTypes.ServerEnvelope, outboundQueueSize),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Queue enqueues a message for delivery. It reports false when the
// client is closed or its queue is full; the hub treats both as a gone
// or hopelessly slow subscriber.
func (c *Client) Queue(msg realtimeTypes.ServerEnvelope) bool {
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

// WriteLoop delivers queued messages until the client closes or a write
// fails.
func (c *Client) WriteLoop() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close marks the client closed and drops the connection. Safe to call
// repeatedly and concurrently with Queue.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.Close()
}
