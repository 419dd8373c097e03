package presence

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id   string
	msgs [][]byte
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(msg []byte) bool {
	f.msgs = append(f.msgs, msg)
	return true
}

func TestRegisterDeregisterRoster(t *testing.T) {
	r := NewRegistry()

	a1 := &fakeConn{id: "a1"}
	a2 := &fakeConn{id: "a2"}
	b1 := &fakeConn{id: "b1"}

	require.True(t, r.Register("alice", a1), "first connection should bring alice online")
	require.False(t, r.Register("alice", a2), "second connection must not retransition")
	require.True(t, r.Register("bob", b1))

	online := r.Online()
	sort.Strings(online)
	assert.Equal(t, []string{"alice", "bob"}, online)
	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.Connections("alice"), 2)
	assert.Len(t, r.Connections("bob"), 1)

	// Dropping one of two connections keeps alice online.
	require.False(t, r.Deregister("alice", a1))
	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.Connections("alice"), 1)

	// Dropping the last one removes her from the roster entirely.
	require.True(t, r.Deregister("alice", a2))
	assert.Equal(t, []string{"bob"}, r.Online())
	assert.Nil(t, r.Connections("alice"))
}

func TestDeregisterUnknown(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Deregister("ghost", &fakeConn{id: "g1"}))
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.Online())
}

func TestEachSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", &fakeConn{id: "a1"})
	r.Register("alice", &fakeConn{id: "a2"})
	r.Register("bob", &fakeConn{id: "b1"})

	seen := map[string]int{}
	r.Each(func(userID string, c Conn) {
		seen[userID]++
	})
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, seen)
}
