/*
Package gateway contains the real-time coordination core: connection tracking,
presence reference counting, room broadcast, targeted fan-out, and the message
and read-receipt pipelines.

This file defines Conn, the gateway's view of one live transport connection.
It is deliberately decoupled from the WebSocket so the core can be exercised
in tests without a network.
*/
package gateway

import "sync"

// sendQueueSize is the per-connection outbound buffer. A consumer that falls
// this far behind starts losing events (delivery is best-effort).
const sendQueueSize = 256

// Conn is one live transport connection as seen by the gateway.
// It exists only while the client socket is open.
type Conn struct {
	// id uniquely identifies the connection for its lifetime.
	id string

	// send queues encoded frames awaiting delivery by the transport write loop.
	send chan []byte

	// done is closed exactly once when the connection is torn down.
	done chan struct{}

	closeOnce sync.Once
}

// NewConn constructs a connection handle with an initialized send queue.
func NewConn(id string) *Conn {
	return &Conn{
		id:   id,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Enqueue offers an encoded frame to the connection without blocking.
// Returns false if the connection is closed or its queue is full; the frame
// is dropped in that case.
func (c *Conn) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Outbound exposes the queued frames for the transport write loop.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// Close marks the connection as torn down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed when the connection has been torn down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}
