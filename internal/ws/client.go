package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultSendBuffer is the per-member outbound queue depth. When a member's
// queue overflows the hub drops the connection instead of blocking.
const DefaultSendBuffer = 256

// outMessage pairs a websocket message type with its payload so text and
// binary traffic share one ordered queue.
type outMessage struct {
	kind int
	data []byte
}

// Client is the outbound send path for one connection. Sends are
// non-blocking: enqueue or report failure, never stall the caller. It
// implements collab.Sender.
type Client struct {
	send chan outMessage

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client with the given queue depth. A non-positive
// buffer selects DefaultSendBuffer.
func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		send: make(chan outMessage, buffer),
	}
}

// SendText queues a text message. Returns false if the queue is full or the
// client is closed.
func (c *Client) SendText(data []byte) bool {
	return c.enqueue(outMessage{kind: websocket.TextMessage, data: data})
}

// SendBinary queues a binary message. Returns false if the queue is full or
// the client is closed.
func (c *Client) SendBinary(data []byte) bool {
	return c.enqueue(outMessage{kind: websocket.BinaryMessage, data: data})
}

func (c *Client) enqueue(msg outMessage) bool {
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

// Close shuts the send path. Idempotent; queued messages already accepted are
// still drained by the write pump.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed reports whether the send path has been shut.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) outbound() <-chan outMessage {
	return c.send
}
