package client

import (
	"log"

	"social-chat-service/internal/models"
)

// Signaler produces the in-tab and OS-level signals for an incoming message.
type Signaler interface {
	PlayTone() error
	Notify(title, body string) error
}

// BadgeSurface renders the aggregate unread badge somewhere visible. Each
// render is a full idempotent repaint, never an increment.
type BadgeSurface interface {
	SetBadge(total int) error
}

// Bridge turns reconciled event outcomes into user-visible signals. Each
// signal is attempted independently; a failing surface never blocks the
// others.
type Bridge struct {
	reconciler *Reconciler
	store      StateStore
	signaler   Signaler
	surfaces   []BadgeSurface

	soundEnabled  bool
	audioUnlocked bool
	notifyGranted bool
}

// NewBridge constructs a Bridge over the given surfaces.
func NewBridge(reconciler *Reconciler, store StateStore, signaler Signaler, surfaces ...BadgeSurface) *Bridge {
	return &Bridge{
		reconciler: reconciler,
		store:      store,
		signaler:   signaler,
		surfaces:   surfaces,
	}
}

// SetSoundEnabled toggles the tone preference.
func (b *Bridge) SetSoundEnabled(enabled bool) { b.soundEnabled = enabled }

// UnlockAudio marks that a user gesture has unlocked audio playback.
func (b *Bridge) UnlockAudio() { b.audioUnlocked = true }

// GrantNotifications marks that OS notification permission was granted.
func (b *Bridge) GrantNotifications() { b.notifyGranted = true }

// OnMessage runs one incoming event through the reconciler and emits signals
// per the priority rules: self-sent events are silent, events for the active
// visible conversation are silent, everything else may tone and notify.
func (b *Bridge) OnMessage(ev models.ServerEvent) {
	outcome := b.reconciler.Apply(ev)

	if outcome.SelfSender {
		return
	}
	if outcome.ActiveVisible {
		b.RefreshBadges()
		return
	}
	if !outcome.UnreadChanged {
		return
	}

	if b.soundEnabled && b.audioUnlocked {
		if err := b.signaler.PlayTone(); err != nil {
			log.Printf("bridge: tone failed: %v", err)
		}
	}
	if b.notifyGranted && !b.foregroundVisible() {
		if err := b.signaler.Notify("New message", outcome.Preview); err != nil {
			log.Printf("bridge: notification failed: %v", err)
		}
	}
	b.RefreshBadges()
}

// RefreshBadges repaints every badge surface with the aggregate of unread
// messages and pending friend requests. Repaints are idempotent so surfaces
// cannot drift from the store.
func (b *Bridge) RefreshBadges() {
	total := b.store.UnreadTotal() + b.store.FriendRequestCount()
	for _, surface := range b.surfaces {
		if err := surface.SetBadge(total); err != nil {
			log.Printf("bridge: badge repaint failed: %v", err)
		}
	}
}

func (b *Bridge) foregroundVisible() bool {
	b.reconciler.mu.Lock()
	defer b.reconciler.mu.Unlock()
	return b.reconciler.visible
}
