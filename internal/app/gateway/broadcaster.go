/*
Package gateway contains the real-time coordination core.

This file defines the Broadcaster, which manages room membership (one room per
chat) and delivers encoded frames to room members, to explicit connection
sets, or to every live connection. Delivery is best-effort and fire-and-forget;
per-room ordering follows the order of Emit calls.
*/
package gateway

import (
	"sync"

	"github.com/rs/zerolog"

	"chatgate/internal/pkg/logx"
)

// Broadcaster owns the room membership sets. Rooms are not persisted; they are
// rebuilt from live join/leave events. A connection may belong to any number
// of rooms even though clients currently view one chat at a time.
type Broadcaster struct {
	// mu protects all three maps.
	mu sync.RWMutex

	// conns is the set of every live connection, for whole-server broadcast.
	conns map[*Conn]struct{}

	// rooms maps a room ID to its subscribed connections.
	rooms map[string]map[*Conn]struct{}

	// memberships is the reverse index used to strip a connection from all of
	// its rooms on disconnect without scanning every room.
	memberships map[*Conn]map[string]struct{}

	logger zerolog.Logger
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		conns:       make(map[*Conn]struct{}),
		rooms:       make(map[string]map[*Conn]struct{}),
		memberships: make(map[*Conn]map[string]struct{}),
		logger:      logx.Logger().With().Str("component", "Broadcaster").Logger(),
	}
}

// Register adds a connection to the live set.
func (b *Broadcaster) Register(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.conns[c] = struct{}{}
}

// Drop removes a connection from the live set and from every room it joined.
// Called on disconnect; a second Drop for the same connection is a no-op.
func (b *Broadcaster) Drop(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for roomID := range b.memberships[c] {
		b.removeFromRoomLocked(c, roomID)
	}
	delete(b.memberships, c)
	delete(b.conns, c)
}

// Join subscribes a connection to a room, creating the room on first join.
// Joining a room twice is a no-op.
func (b *Broadcaster) Join(c *Conn, roomID string) {
	if roomID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, live := b.conns[c]; !live {
		b.logger.Warn().
			Str("conn_id", c.ID()).
			Str("room_id", roomID).
			Msg("Join ignored for unregistered connection.")
		return
	}

	room, ok := b.rooms[roomID]
	if !ok {
		room = make(map[*Conn]struct{})
		b.rooms[roomID] = room
	}
	room[c] = struct{}{}

	member, ok := b.memberships[c]
	if !ok {
		member = make(map[string]struct{})
		b.memberships[c] = member
	}
	member[roomID] = struct{}{}
}

// Leave unsubscribes a connection from a room. Leaving a room the connection
// never joined is a no-op.
func (b *Broadcaster) Leave(c *Conn, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeFromRoomLocked(c, roomID)

	if member, ok := b.memberships[c]; ok {
		delete(member, roomID)
		if len(member) == 0 {
			delete(b.memberships, c)
		}
	}
}

// removeFromRoomLocked deletes c from the room's set and removes the room
// entirely once empty. Caller must hold mu.
func (b *Broadcaster) removeFromRoomLocked(c *Conn, roomID string) {
	room, ok := b.rooms[roomID]
	if !ok {
		return
	}

	delete(room, c)
	if len(room) == 0 {
		delete(b.rooms, roomID)
	}
}

// EmitRoom delivers the frame to every connection currently joined to the
// room. An unknown room is a normal empty-result case, not an error.
func (b *Broadcaster) EmitRoom(roomID string, frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.rooms[roomID] {
		b.enqueue(c, frame)
	}
}

// EmitAll delivers the frame to every live connection.
func (b *Broadcaster) EmitAll(frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.conns {
		b.enqueue(c, frame)
	}
}

// EmitConns delivers the frame to an explicit connection set, used for
// targeted per-user fan-out.
func (b *Broadcaster) EmitConns(conns []*Conn, frame []byte) {
	for _, c := range conns {
		b.enqueue(c, frame)
	}
}

// EmitConn delivers the frame to a single connection.
func (b *Broadcaster) EmitConn(c *Conn, frame []byte) {
	b.enqueue(c, frame)
}

func (b *Broadcaster) enqueue(c *Conn, frame []byte) {
	if !c.Enqueue(frame) {
		b.logger.Warn().
			Str("conn_id", c.ID()).
			Msg("Connection send queue full or closed, dropping frame.")
	}
}
