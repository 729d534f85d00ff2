/*
Package gateway contains the real-time coordination core.

This file defines the Registry, which maps transport connections to user
identities and back, and derives each user's online flag from a reference
count of simultaneous connections (multiple tabs/devices).
*/
package gateway

import (
	"sync"

	"github.com/rs/zerolog"

	"chatgate/internal/pkg/logx"
)

// AnnounceResult describes the outcome of binding a connection to a user.
type AnnounceResult struct {
	// OK reports whether the identity was accepted and is now bound.
	OK bool

	// First is true when this binding was the user's first active connection,
	// i.e. the user just transitioned to online.
	First bool

	// Released names a user whose last connection was detached because this
	// connection was rebound to a different identity. Empty when no user went
	// offline as a side effect.
	Released string
}

// Registry owns the {user ↔ connections} relation. All state is process-local
// and rebuilt as clients reconnect; nothing here is ever persisted.
// Invariants: a user is online iff it has at least one connection; a
// connection is bound to at most one user; an entry is removed entirely when
// its reference count reaches zero.
type Registry struct {
	// mu serializes every state transition, including disconnects racing an
	// in-flight announce for the same connection.
	mu sync.RWMutex

	// conns maps each known connection to its bound user ID ("" while anonymous).
	conns map[*Conn]string

	// users maps each online user to its set of active connections.
	users map[string]map[*Conn]struct{}

	logger zerolog.Logger
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[*Conn]string),
		users:  make(map[string]map[*Conn]struct{}),
		logger: logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// Connect registers a new anonymous connection. No side effect beyond bookkeeping.
func (r *Registry) Connect(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.conns[c]; !known {
		r.conns[c] = ""
	}
}

// Announce binds a connection to a user identity. Idempotent for a repeated
// (connection, user) pair. An empty identity is a logged no-op. Announcing on
// a connection that already disconnected is refused rather than resurrecting it.
func (r *Registry) Announce(c *Conn, userID string) AnnounceResult {
	if userID == "" {
		r.logger.Warn().Str("conn_id", c.ID()).Msg("Announce with empty identity ignored.")
		return AnnounceResult{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, known := r.conns[c]
	if !known {
		r.logger.Warn().
			Str("conn_id", c.ID()).
			Str("user_id", userID).
			Msg("Announce for unknown connection ignored (already disconnected?).")
		return AnnounceResult{}
	}

	if current == userID {
		// Repeated announce for the same pair must not double count.
		return AnnounceResult{OK: true}
	}

	res := AnnounceResult{OK: true}

	if current != "" {
		if r.detachLocked(c, current) {
			res.Released = current
		}
	}

	r.conns[c] = userID

	set, ok := r.users[userID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.users[userID] = set
		res.First = true
	}
	set[c] = struct{}{}

	r.logger.Debug().
		Str("conn_id", c.ID()).
		Str("user_id", userID).
		Int("connection_count", len(set)).
		Bool("first", res.First).
		Msg("Connection bound to user.")

	return res
}

// Disconnect removes a connection entirely. Returns the user it was bound to
// and whether that user's reference count reached zero. Idempotent: a second
// disconnect for the same connection reports no user.
func (r *Registry) Disconnect(c *Conn) (userID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, known := r.conns[c]
	if !known {
		return "", false
	}
	delete(r.conns, c)

	if current == "" {
		return "", false
	}

	return current, r.detachLocked(c, current)
}

// detachLocked removes c from userID's connection set and deletes the entry
// when the set becomes empty, bounding memory growth from churny users.
// Caller must hold mu.
func (r *Registry) detachLocked(c *Conn, userID string) bool {
	set, ok := r.users[userID]
	if !ok {
		return false
	}

	delete(set, c)
	if len(set) > 0 {
		return false
	}

	delete(r.users, userID)
	return true
}

// Snapshot returns the identities of all currently online users, used to
// answer a full-state presence query from a newly connected client.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids
}

// Online reports whether the user currently has at least one open connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok
}

// ConnsOf resolves the given identities to their currently active connections.
// Identities with no connections contribute nothing.
func (r *Registry) ConnsOf(userIDs ...string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Conn
	for _, id := range userIDs {
		for c := range r.users[id] {
			conns = append(conns, c)
		}
	}
	return conns
}
