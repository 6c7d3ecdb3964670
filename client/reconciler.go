package client

import (
	"context"
	"log"
	"sync"
	"time"

	"social-chat-service/internal/models"
)

// RoomJoiner issues room joins over the realtime channel.
type RoomJoiner interface {
	Join(conversationID int) error
}

// ConversationLister re-derives the set of conversations the user belongs to.
type ConversationLister interface {
	ConversationIDs(ctx context.Context) ([]int, error)
}

// Outcome describes how an event was reconciled, for the delivery bridge to
// act on.
type Outcome struct {
	SelfSender    bool
	ActiveVisible bool
	UnreadChanged bool
	Preview       string
}

// Reconciler keeps the local view convergent with server truth: unread
// counters, per-conversation message lists, and room membership after
// reconnects. Counters are a derived approximation; they reset when a
// conversation becomes active and are never checked against a server total.
type Reconciler struct {
	selfID int
	store  StateStore

	mu       sync.Mutex
	visible  bool
	messages map[int][]models.Message
}

// NewReconciler constructs a Reconciler for the given local identity.
func NewReconciler(selfID int, store StateStore) *Reconciler {
	return &Reconciler{
		selfID:   selfID,
		store:    store,
		visible:  true,
		messages: make(map[int][]models.Message),
	}
}

// SetVisible records whether the app is foreground-visible.
func (r *Reconciler) SetVisible(visible bool) {
	r.mu.Lock()
	r.visible = visible
	r.mu.Unlock()
}

// SetActiveConversation switches the viewed conversation and clears its
// unread counter.
func (r *Reconciler) SetActiveConversation(conversationID int) {
	r.store.SetActiveConversation(conversationID)
}

// LoadMessages seeds a conversation's list from a REST snapshot, replacing
// whatever was cached.
func (r *Reconciler) LoadMessages(conversationID int, msgs []models.Message) {
	r.mu.Lock()
	r.messages[conversationID] = append([]models.Message(nil), msgs...)
	r.mu.Unlock()
}

// Messages returns a copy of the cached list for a conversation.
func (r *Reconciler) Messages(conversationID int) []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.messages[conversationID]...)
}

// Apply folds one realtime event into local state and reports what changed.
func (r *Reconciler) Apply(ev models.ServerEvent) Outcome {
	switch ev.Type {
	case models.EventMessageNew:
		return r.applyNew(ev)
	case models.EventMessageUpdated, models.EventMessageDeleted:
		return r.applyReplace(ev)
	default:
		return Outcome{}
	}
}

func (r *Reconciler) applyNew(ev models.ServerEvent) Outcome {
	if ev.Message == nil {
		return Outcome{}
	}
	msg := *ev.Message

	r.mu.Lock()
	r.messages[ev.ConversationID] = append(r.messages[ev.ConversationID], msg)
	visible := r.visible
	r.mu.Unlock()

	outcome := Outcome{Preview: msg.Content}
	if msg.SenderID == r.selfID {
		// Echoes of our own sends, including from another device, never
		// count as unread and never signal.
		outcome.SelfSender = true
		return outcome
	}

	if ev.ConversationID == r.store.ActiveConversation() && visible {
		outcome.ActiveVisible = true
		r.store.ClearUnread(ev.ConversationID)
		return outcome
	}

	r.store.IncrementUnread(ev.ConversationID)
	outcome.UnreadChanged = true
	return outcome
}

// applyReplace swaps an edited or deleted message in place by id. Clients
// replace, never append, so a tombstone keeps its position in the list.
func (r *Reconciler) applyReplace(ev models.ServerEvent) Outcome {
	if ev.Message == nil {
		return Outcome{}
	}
	msg := *ev.Message

	r.mu.Lock()
	list := r.messages[ev.ConversationID]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			break
		}
	}
	r.mu.Unlock()

	return Outcome{SelfSender: msg.SenderID == r.selfID}
}

// RejoinAll re-establishes room membership after a (re)connect. Membership
// never survives a transport reconnect, so the set is re-derived from a REST
// fetch. If the fetch fails or comes back empty, it falls back to the
// conversations already known locally: the unread map's keys plus the active
// conversation. Joins that fail are left for the next sweep.
func (r *Reconciler) RejoinAll(ctx context.Context, lister ConversationLister, joiner RoomJoiner) {
	ids, err := lister.ConversationIDs(ctx)
	if err != nil || len(ids) == 0 {
		if err != nil {
			log.Printf("rejoin: conversation fetch failed, using local fallback: %v", err)
		}
		ids = r.store.UnreadConversations()
		if active := r.store.ActiveConversation(); active != 0 {
			ids = append(ids, active)
		}
	}

	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		if err := joiner.Join(id); err != nil {
			log.Printf("rejoin: join %d failed: %v", id, err)
		}
	}
}

// RunSweep re-issues joins on a fixed interval until the context is done,
// bounding the staleness window for conversations created after the initial
// join pass.
func (r *Reconciler) RunSweep(ctx context.Context, interval time.Duration, lister ConversationLister, joiner RoomJoiner) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RejoinAll(ctx, lister, joiner)
		}
	}
}
