package client

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// StateStore holds the advisory client-local caches: unread counts, the
// active-conversation pointer, and the pending friend-request count. None of
// it is authoritative; everything can be rebuilt from REST snapshots.
type StateStore interface {
	UnreadConversations() []int
	Unread(conversationID int) int
	UnreadTotal() int
	IncrementUnread(conversationID int) int
	ClearUnread(conversationID int)
	ActiveConversation() int
	SetActiveConversation(conversationID int)
	FriendRequestCount() int
	SetFriendRequestCount(count int)
}

// MemoryStore is the in-process StateStore.
type MemoryStore struct {
	mu             sync.Mutex
	unread         map[int]int
	active         int
	friendRequests int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{unread: make(map[int]int)}
}

// UnreadConversations lists every conversation id with a positive counter.
func (s *MemoryStore) UnreadConversations() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.unread))
	for id, count := range s.unread {
		if count > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Unread returns the counter for one conversation.
func (s *MemoryStore) Unread(conversationID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[conversationID]
}

// UnreadTotal sums all counters.
func (s *MemoryStore) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, count := range s.unread {
		total += count
	}
	return total
}

// IncrementUnread bumps the counter and returns the new value.
func (s *MemoryStore) IncrementUnread(conversationID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[conversationID]++
	return s.unread[conversationID]
}

// ClearUnread zeroes the counter for a conversation.
func (s *MemoryStore) ClearUnread(conversationID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, conversationID)
}

// ActiveConversation returns the conversation being viewed, or zero.
func (s *MemoryStore) ActiveConversation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActiveConversation records the conversation being viewed. Entering a
// conversation clears its unread counter.
func (s *MemoryStore) SetActiveConversation(conversationID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conversationID
	if conversationID != 0 {
		delete(s.unread, conversationID)
	}
}

// FriendRequestCount returns the cached pending friend-request count.
func (s *MemoryStore) FriendRequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friendRequests
}

// SetFriendRequestCount updates the cached pending friend-request count.
func (s *MemoryStore) SetFriendRequestCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendRequests = count
}

// FileStore wraps a MemoryStore and persists a JSON snapshot after every
// mutation, so state survives restarts the way a browser's local storage
// would. Write failures are logged and swallowed; the cache is advisory.
type FileStore struct {
	*MemoryStore
	path string
}

type fileState struct {
	Unread         map[int]int `json:"unread"`
	Active         int         `json:"active"`
	FriendRequests int         `json:"friendRequests"`
}

// NewFileStore loads the snapshot at path if one exists.
func NewFileStore(path string) *FileStore {
	store := &FileStore{MemoryStore: NewMemoryStore(), path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		return store
	}
	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		log.Printf("state store: ignoring corrupt snapshot %s: %v", path, err)
		return store
	}
	if state.Unread != nil {
		store.unread = state.Unread
	}
	store.active = state.Active
	store.friendRequests = state.FriendRequests
	return store
}

func (s *FileStore) save() {
	s.mu.Lock()
	state := fileState{
		Unread:         make(map[int]int, len(s.unread)),
		Active:         s.active,
		FriendRequests: s.friendRequests,
	}
	for id, count := range s.unread {
		state.Unread[id] = count
	}
	s.mu.Unlock()

	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		log.Printf("state store: snapshot write failed: %v", err)
	}
}

func (s *FileStore) IncrementUnread(conversationID int) int {
	count := s.MemoryStore.IncrementUnread(conversationID)
	s.save()
	return count
}

func (s *FileStore) ClearUnread(conversationID int) {
	s.MemoryStore.ClearUnread(conversationID)
	s.save()
}

func (s *FileStore) SetActiveConversation(conversationID int) {
	s.MemoryStore.SetActiveConversation(conversationID)
	s.save()
}

func (s *FileStore) SetFriendRequestCount(count int) {
	s.MemoryStore.SetFriendRequestCount(count)
	s.save()
}
