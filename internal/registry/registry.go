package registry

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"social-chat-service/internal/models"
	"social-chat-service/internal/observability"
	"social-chat-service/internal/repositories"
)

var ErrInvalidIdentity = errors.New("invalid identity claim")

// Conn is one live realtime connection, owned by exactly one identity for its
// lifetime. Send must not block: it reports false when the event could not be
// queued, which the registry treats as a dead connection.
type Conn interface {
	ID() string
	Identity() int
	Send(event models.ServerEvent) bool
	Close()
}

// Registry maps live connections to identities and room memberships and owns
// presence transitions. It is constructed at startup and injected; there is
// no package-global instance.
//
// Room membership is in-memory only and does not survive a reconnect; the
// client re-establishes it with explicit joins.
type Registry struct {
	presence repositories.PresenceRepository

	mu    sync.Mutex
	conns map[Conn]map[int]struct{}
	rooms map[int]map[Conn]struct{}
	live  map[int]int
}

// New constructs an empty Registry.
func New(presence repositories.PresenceRepository) *Registry {
	return &Registry{
		presence: presence,
		conns:    make(map[Conn]map[int]struct{}),
		rooms:    make(map[int]map[Conn]struct{}),
		live:     make(map[int]int),
	}
}

// Connect registers a connection. A non-positive identity is a hard reject:
// the caller must terminate the connection and no event is emitted. On
// success presence becomes AVAILABLE and a user:online event is broadcast to
// every connection, on every connect, even an Nth device.
func (r *Registry) Connect(ctx context.Context, conn Conn) error {
	identity := conn.Identity()
	if identity <= 0 {
		return ErrInvalidIdentity
	}

	r.mu.Lock()
	r.conns[conn] = make(map[int]struct{})
	r.live[identity]++
	// Persist while holding the lock so presence writes land in the same
	// order as the live-count decisions they derive from.
	if err := r.presence.Set(ctx, identity, models.PresenceAvailable, time.Now()); err != nil {
		log.Printf("presence set available failed for user %d: %v", identity, err)
	}
	targets := r.allConnsLocked()
	r.mu.Unlock()

	r.deliver(targets, models.PresenceOnlineEvent(identity))
	return nil
}

// Disconnect removes a connection's room memberships immediately and
// unconditionally. If it was the identity's last live connection, presence
// becomes OFFLINE with a last-seen stamp and user:offline is broadcast;
// otherwise presence is left untouched (the user is still available on
// another device). Safe to call more than once.
func (r *Registry) Disconnect(ctx context.Context, conn Conn) {
	identity := conn.Identity()

	r.mu.Lock()
	joined, registered := r.conns[conn]
	if !registered {
		r.mu.Unlock()
		return
	}
	for conversationID := range joined {
		r.removeFromRoomLocked(conversationID, conn)
	}
	delete(r.conns, conn)

	// The decrement and the last-connection test happen under the same lock
	// hold, so a concurrent connect for the same identity cannot interleave
	// between them.
	r.live[identity]--
	last := r.live[identity] <= 0
	var lastSeen time.Time
	if last {
		delete(r.live, identity)
		lastSeen = time.Now()
		if err := r.presence.Set(ctx, identity, models.PresenceOffline, lastSeen); err != nil {
			log.Printf("presence set offline failed for user %d: %v", identity, err)
		}
	}
	var targets []Conn
	if last {
		targets = r.allConnsLocked()
	}
	r.mu.Unlock()

	conn.Close()
	if last {
		r.deliver(targets, models.PresenceOfflineEvent(identity, lastSeen))
	}
}

// Join adds the connection to a conversation's room. Idempotent. No
// authorization check happens here: the write-time participant check in the
// fan-out engine is the real gate, and a room a non-participant sits in only
// ever carries events they could also fetch over REST.
func (r *Registry) Join(conn Conn, conversationID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, registered := r.conns[conn]
	if !registered {
		return
	}
	joined[conversationID] = struct{}{}
	if _, ok := r.rooms[conversationID]; !ok {
		r.rooms[conversationID] = make(map[Conn]struct{})
	}
	r.rooms[conversationID][conn] = struct{}{}
}

// Leave removes the connection from a conversation's room.
func (r *Registry) Leave(conn Conn, conversationID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if joined, registered := r.conns[conn]; registered {
		delete(joined, conversationID)
	}
	r.removeFromRoomLocked(conversationID, conn)
}

// ToRoom broadcasts one event to every connection joined to the
// conversation's room.
func (r *Registry) ToRoom(conversationID int, event models.ServerEvent) {
	r.mu.Lock()
	targets := r.roomConnsLocked(conversationID, nil)
	r.mu.Unlock()

	observability.IncBroadcast(event.Type)
	r.deliver(targets, event)
}

// ToRoomExcept broadcasts to the room excluding one connection. Used for
// typing relays, which never echo back to the typist.
func (r *Registry) ToRoomExcept(conversationID int, except Conn, event models.ServerEvent) {
	r.mu.Lock()
	targets := r.roomConnsLocked(conversationID, except)
	r.mu.Unlock()

	observability.IncBroadcast(event.Type)
	r.deliver(targets, event)
}

// ToAll broadcasts to every live connection. Presence transitions are global
// by design: every user sees every other user's online/offline changes.
func (r *Registry) ToAll(event models.ServerEvent) {
	r.mu.Lock()
	targets := r.allConnsLocked()
	r.mu.Unlock()

	observability.IncBroadcast(event.Type)
	r.deliver(targets, event)
}

// LiveConnections reports the current live-connection count for an identity.
func (r *Registry) LiveConnections(identity int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[identity]
}

func (r *Registry) allConnsLocked() []Conn {
	targets := make([]Conn, 0, len(r.conns))
	for conn := range r.conns {
		targets = append(targets, conn)
	}
	return targets
}

func (r *Registry) roomConnsLocked(conversationID int, except Conn) []Conn {
	room := r.rooms[conversationID]
	targets := make([]Conn, 0, len(room))
	for conn := range room {
		if conn == except {
			continue
		}
		targets = append(targets, conn)
	}
	return targets
}

func (r *Registry) removeFromRoomLocked(conversationID int, conn Conn) {
	if room, ok := r.rooms[conversationID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(r.rooms, conversationID)
		}
	}
}

func (r *Registry) deliver(targets []Conn, event models.ServerEvent) {
	var failed []Conn
	for _, conn := range targets {
		if !conn.Send(event) {
			log.Printf("dropping unresponsive connection %s", conn.ID())
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		r.Disconnect(context.Background(), conn)
	}
}
