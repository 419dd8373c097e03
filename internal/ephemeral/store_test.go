package ephemeral

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, ConversationKey("alice", "bob"), ConversationKey("bob", "alice"))
	assert.Equal(t, "alice-bob", ConversationKey("bob", "alice"))
}

func TestStoreDefaultsFalse(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Enabled("alice", "bob"))
}

func TestToggleEitherDirection(t *testing.T) {
	s := NewStore()

	s.Set("alice", "bob", true)
	assert.True(t, s.Enabled("alice", "bob"))
	assert.True(t, s.Enabled("bob", "alice"), "reversed pair must read the same flag")

	// Last toggle wins, regardless of which side toggles.
	s.Set("bob", "alice", false)
	assert.False(t, s.Enabled("alice", "bob"))

	// Unrelated conversations are untouched.
	s.Set("alice", "bob", true)
	assert.False(t, s.Enabled("alice", "carol"))
}
