package ephemeral

import "sync"

// ConversationKey derives the canonical key for a pair of users: ids
// sorted, joined with "-", so (a,b) and (b,a) collide. The format
// matches what clients display in debug views, keep it stable.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// Store holds the per-conversation ephemeral flag. Absence of a key
// means "not ephemeral". Held in process memory only; flags reset on
// restart and clients re-toggle.
type Store struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{flags: make(map[string]bool)}
}

// Set overwrites the flag for the conversation. Last toggle wins.
func (s *Store) Set(a, b string, enabled bool) {
	key := ConversationKey(a, b)
	s.mu.Lock()
	s.flags[key] = enabled
	s.mu.Unlock()
}

// Enabled reports the flag for the conversation, false when unset.
func (s *Store) Enabled(a, b string) bool {
	key := ConversationKey(a, b)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[key]
}
