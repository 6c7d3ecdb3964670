package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat-service/internal/models"
)

type fakeJoiner struct {
	mu     sync.Mutex
	joined []int
}

func (j *fakeJoiner) Join(conversationID int) error {
	j.mu.Lock()
	j.joined = append(j.joined, conversationID)
	j.mu.Unlock()
	return nil
}

func (j *fakeJoiner) all() []int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]int(nil), j.joined...)
}

type fakeLister struct {
	ids []int
	err error
}

func (l *fakeLister) ConversationIDs(context.Context) ([]int, error) {
	return l.ids, l.err
}

func newMsgEvent(conversationID, senderID int, content string) models.ServerEvent {
	return models.MessageEvent(models.EventMessageNew, models.Message{
		ID:             1,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	})
}

func TestApplyIncrementsUnreadForInactiveConversation(t *testing.T) {
	store := NewMemoryStore()
	r := NewReconciler(1, store)
	r.SetActiveConversation(3)

	outcome := r.Apply(newMsgEvent(5, 2, "hi"))

	require.True(t, outcome.UnreadChanged)
	require.False(t, outcome.SelfSender)
	require.Equal(t, 1, store.Unread(5))
}

func TestApplySuppressesUnreadForActiveVisible(t *testing.T) {
	store := NewMemoryStore()
	r := NewReconciler(1, store)
	r.SetActiveConversation(5)
	r.SetVisible(true)

	outcome := r.Apply(newMsgEvent(5, 2, "hi"))

	require.True(t, outcome.ActiveVisible)
	require.False(t, outcome.UnreadChanged)
	require.Equal(t, 0, store.Unread(5))
}

func TestApplyCountsActiveConversationWhenHidden(t *testing.T) {
	store := NewMemoryStore()
	r := NewReconciler(1, store)
	r.SetActiveConversation(5)
	r.SetVisible(false)

	outcome := r.Apply(newMsgEvent(5, 2, "hi"))

	require.True(t, outcome.UnreadChanged)
	require.Equal(t, 1, store.Unread(5))
}

func TestApplyIgnoresOwnEcho(t *testing.T) {
	store := NewMemoryStore()
	r := NewReconciler(1, store)
	r.SetActiveConversation(3)

	// Echo of our own send from another device.
	outcome := r.Apply(newMsgEvent(5, 1, "hi"))

	require.True(t, outcome.SelfSender)
	require.Equal(t, 0, store.Unread(5))
}

func TestApplyAppendsToMessageList(t *testing.T) {
	r := NewReconciler(1, NewMemoryStore())

	r.Apply(newMsgEvent(5, 2, "first"))
	r.Apply(models.MessageEvent(models.EventMessageNew, models.Message{ID: 2, ConversationID: 5, SenderID: 2, Content: "second"}))

	msgs := r.Messages(5)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)
}

func TestApplyUpdateReplacesInPlace(t *testing.T) {
	r := NewReconciler(1, NewMemoryStore())
	r.LoadMessages(5, []models.Message{
		{ID: 1, ConversationID: 5, SenderID: 2, Content: "hello"},
		{ID: 2, ConversationID: 5, SenderID: 2, Content: "world"},
	})

	editedAt := time.Now()
	r.Apply(models.MessageEvent(models.EventMessageUpdated, models.Message{
		ID: 1, ConversationID: 5, SenderID: 2, Content: "hello there", EditedAt: &editedAt,
	}))

	msgs := r.Messages(5)
	require.Len(t, msgs, 2, "updates replace, never append")
	require.Equal(t, "hello there", msgs[0].Content)
	require.Equal(t, "world", msgs[1].Content)
}

func TestApplyDeleteLeavesTombstone(t *testing.T) {
	r := NewReconciler(1, NewMemoryStore())
	r.LoadMessages(5, []models.Message{{ID: 1, ConversationID: 5, SenderID: 2, Content: "hello"}})

	deletedAt := time.Now()
	r.Apply(models.MessageEvent(models.EventMessageDeleted, models.Message{
		ID: 1, ConversationID: 5, SenderID: 2, Content: "", DeletedAt: &deletedAt,
	}))

	msgs := r.Messages(5)
	require.Len(t, msgs, 1, "tombstones keep their position, replies may reference them")
	require.Empty(t, msgs[0].Content)
	require.True(t, msgs[0].Deleted())
}

func TestSetActiveConversationClearsUnread(t *testing.T) {
	store := NewMemoryStore()
	r := NewReconciler(1, store)

	r.Apply(newMsgEvent(5, 2, "hi"))
	require.Equal(t, 1, store.Unread(5))

	r.SetActiveConversation(5)
	require.Equal(t, 0, store.Unread(5))
}

func TestRejoinAllUsesFetchedList(t *testing.T) {
	r := NewReconciler(1, NewMemoryStore())
	joiner := &fakeJoiner{}

	r.RejoinAll(context.Background(), &fakeLister{ids: []int{3, 7, 3}}, joiner)

	require.ElementsMatch(t, []int{3, 7}, joiner.joined, "duplicates are joined once")
}

func TestRejoinAllFallsBackToLocalState(t *testing.T) {
	store := NewMemoryStore()
	store.IncrementUnread(4)
	store.IncrementUnread(9)
	store.SetActiveConversation(2)

	r := NewReconciler(1, store)
	joiner := &fakeJoiner{}

	r.RejoinAll(context.Background(), &fakeLister{err: assert.AnError}, joiner)

	require.ElementsMatch(t, []int{4, 9, 2}, joiner.joined,
		"fetch failure degrades to unread keys plus the active conversation")
}

func TestRejoinAllEmptyFetchFallsBack(t *testing.T) {
	store := NewMemoryStore()
	store.SetActiveConversation(2)

	r := NewReconciler(1, store)
	joiner := &fakeJoiner{}

	r.RejoinAll(context.Background(), &fakeLister{}, joiner)

	require.Equal(t, []int{2}, joiner.joined)
}

func TestRunSweepRejoinsPeriodically(t *testing.T) {
	r := NewReconciler(1, NewMemoryStore())
	joiner := &fakeJoiner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.RunSweep(ctx, 10*time.Millisecond, &fakeLister{ids: []int{3}}, joiner)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(joiner.all()) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
