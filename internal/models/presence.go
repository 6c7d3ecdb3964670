package models

import "time"

// Presence states. At most one authoritative value exists per user at any
// instant; the registry derives AVAILABLE/OFFLINE transitions from the live
// connection count, the remaining states are user-selected.
const (
	PresenceAvailable    = "AVAILABLE"
	PresenceBusy         = "BUSY"
	PresenceAway         = "AWAY"
	PresenceOffline      = "OFFLINE"
	PresenceInvisible    = "INVISIBLE"
	PresenceVisibleToAll = "VISIBLE_TO_ALL"
)

// Presence is a user's connectivity classification plus last-seen stamp.
type Presence struct {
	UserID   int       `db:"user_id" json:"userId"`
	State    string    `db:"state" json:"state"`
	LastSeen time.Time `db:"last_seen" json:"lastSeen"`
}

// ValidPresenceState reports whether s is a known presence state.
func ValidPresenceState(s string) bool {
	switch s {
	case PresenceAvailable, PresenceBusy, PresenceAway,
		PresenceOffline, PresenceInvisible, PresenceVisibleToAll:
		return true
	}
	return false
}
