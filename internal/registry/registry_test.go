package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat-service/internal/mocks"
	"social-chat-service/internal/models"
)

type fakeConn struct {
	id       string
	identity int
	reject   bool

	mu     sync.Mutex
	events []models.ServerEvent
	closed bool
}

func (c *fakeConn) ID() string    { return c.id }
func (c *fakeConn) Identity() int { return c.identity }

func (c *fakeConn) Send(event models.ServerEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject {
		return false
	}
	c.events = append(c.events, event)
	return true
}

func (c *fakeConn) setReject(reject bool) {
	c.mu.Lock()
	c.reject = reject
	c.mu.Unlock()
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) eventsOfType(eventType string) []models.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.ServerEvent
	for _, ev := range c.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestRegistry() (*Registry, *mocks.PresenceRepositoryMock) {
	presence := new(mocks.PresenceRepositoryMock)
	presence.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return New(presence), presence
}

func TestConnectRejectsInvalidIdentity(t *testing.T) {
	reg, presence := newTestRegistry()
	observer := &fakeConn{id: "obs", identity: 9}
	require.NoError(t, reg.Connect(context.Background(), observer))

	err := reg.Connect(context.Background(), &fakeConn{id: "bad", identity: 0})
	require.ErrorIs(t, err, ErrInvalidIdentity)

	// No presence event reaches anyone for the rejected connection.
	for _, ev := range observer.eventsOfType(models.EventUserOnline) {
		require.NotEqual(t, 0, ev.UserID)
	}
	presence.AssertNotCalled(t, "Set", mock.Anything, 0, mock.Anything, mock.Anything)
}

func TestPresenceMultiDevice(t *testing.T) {
	reg, presence := newTestRegistry()
	observer := &fakeConn{id: "obs", identity: 9}
	require.NoError(t, reg.Connect(context.Background(), observer))

	phone := &fakeConn{id: "phone", identity: 1}
	laptop := &fakeConn{id: "laptop", identity: 1}
	require.NoError(t, reg.Connect(context.Background(), phone))
	require.NoError(t, reg.Connect(context.Background(), laptop))
	require.Equal(t, 2, reg.LiveConnections(1))

	reg.Disconnect(context.Background(), phone)
	require.Equal(t, 1, reg.LiveConnections(1))
	require.Empty(t, observer.eventsOfType(models.EventUserOffline),
		"no offline broadcast while another device is live")
	presence.AssertNotCalled(t, "Set", mock.Anything, 1, models.PresenceOffline, mock.Anything)

	reg.Disconnect(context.Background(), laptop)
	require.Equal(t, 0, reg.LiveConnections(1))

	offline := observer.eventsOfType(models.EventUserOffline)
	require.Len(t, offline, 1)
	require.Equal(t, 1, offline[0].UserID)
	require.NotNil(t, offline[0].LastSeen)
	presence.AssertCalled(t, "Set", mock.Anything, 1, models.PresenceOffline, mock.Anything)
}

func TestConnectBroadcastsOnlineGlobally(t *testing.T) {
	reg, _ := newTestRegistry()
	observer := &fakeConn{id: "obs", identity: 9}
	require.NoError(t, reg.Connect(context.Background(), observer))

	require.NoError(t, reg.Connect(context.Background(), &fakeConn{id: "c1", identity: 2}))

	online := observer.eventsOfType(models.EventUserOnline)
	require.Len(t, online, 1)
	require.Equal(t, 2, online[0].UserID)
}

func TestDisconnectTearsDownRooms(t *testing.T) {
	reg, _ := newTestRegistry()
	member := &fakeConn{id: "m", identity: 1}
	require.NoError(t, reg.Connect(context.Background(), member))
	reg.Join(member, 5)

	reg.Disconnect(context.Background(), member)
	require.True(t, member.closed)

	// The room is gone; a broadcast reaches nobody.
	stayer := &fakeConn{id: "s", identity: 2}
	require.NoError(t, reg.Connect(context.Background(), stayer))
	reg.ToRoom(5, models.TypingEvent(5, 2))
	require.Empty(t, member.eventsOfType(models.EventUserTyping))
}

func TestDisconnectIdempotent(t *testing.T) {
	reg, _ := newTestRegistry()
	conn := &fakeConn{id: "c", identity: 1}
	require.NoError(t, reg.Connect(context.Background(), conn))

	reg.Disconnect(context.Background(), conn)
	reg.Disconnect(context.Background(), conn)
	require.Equal(t, 0, reg.LiveConnections(1))
}

func TestJoinIdempotent(t *testing.T) {
	reg, _ := newTestRegistry()
	conn := &fakeConn{id: "c", identity: 1}
	require.NoError(t, reg.Connect(context.Background(), conn))

	reg.Join(conn, 7)
	reg.Join(conn, 7)

	reg.ToRoom(7, models.TypingEvent(7, 2))
	require.Len(t, conn.eventsOfType(models.EventUserTyping), 1,
		"double join must not cause double delivery")
}

func TestJoinUnregisteredConnIgnored(t *testing.T) {
	reg, _ := newTestRegistry()
	stranger := &fakeConn{id: "x", identity: 1}

	reg.Join(stranger, 3)
	reg.ToRoom(3, models.TypingEvent(3, 2))
	require.Empty(t, stranger.eventsOfType(models.EventUserTyping))
}

func TestToRoomExceptSkipsSender(t *testing.T) {
	reg, _ := newTestRegistry()
	typist := &fakeConn{id: "t", identity: 1}
	other := &fakeConn{id: "o", identity: 2}
	require.NoError(t, reg.Connect(context.Background(), typist))
	require.NoError(t, reg.Connect(context.Background(), other))
	reg.Join(typist, 4)
	reg.Join(other, 4)

	reg.ToRoomExcept(4, typist, models.TypingEvent(4, 1))

	require.Empty(t, typist.eventsOfType(models.EventUserTyping))
	require.Len(t, other.eventsOfType(models.EventUserTyping), 1)
}

func TestDeliverDropsUnresponsiveConn(t *testing.T) {
	reg, _ := newTestRegistry()
	dead := &fakeConn{id: "dead", identity: 1}
	require.NoError(t, reg.Connect(context.Background(), dead))
	reg.Join(dead, 6)
	dead.setReject(true)

	reg.ToRoom(6, models.TypingEvent(6, 2))

	require.True(t, dead.closed)
	require.Equal(t, 0, reg.LiveConnections(1))
}
