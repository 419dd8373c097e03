package presence

import "sync"

// Conn is one live connection owned by a user, as the registry sees it.
// Enqueue reports whether the payload was accepted; a full or closed
// connection returns false and the payload is dropped.
type Conn interface {
	ID() string
	Enqueue(msg []byte) bool
}

// Registry maps a user id to the set of that user's open connections.
// A user appears in the map iff the set is non-empty; deregistering the
// last connection removes the entry entirely.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]Conn
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]map[string]Conn),
	}
}

// Register adds a connection to the user's set. It reports whether the
// user transitioned offline -> online.
func (r *Registry) Register(userID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]Conn)
		r.users[userID] = set
	}
	set[c.ID()] = c
	return !ok
}

// Deregister removes a connection from the user's set. It reports
// whether the user transitioned online -> offline.
func (r *Registry) Deregister(userID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return false
	}
	delete(set, c.ID())
	if len(set) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// Connections returns a snapshot of the user's open connections. A
// connection closing after the snapshot simply misses that dispatch.
func (r *Registry) Connections(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Online returns the ids of all currently-online users.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	return out
}

// Count returns the number of distinct online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Each calls fn for every open connection of every user, over a
// snapshot taken at the start of the call.
func (r *Registry) Each(fn func(userID string, c Conn)) {
	r.mu.RLock()
	conns := make(map[string][]Conn, len(r.users))
	for id, set := range r.users {
		list := make([]Conn, 0, len(set))
		for _, c := range set {
			list = append(list, c)
		}
		conns[id] = list
	}
	r.mu.RUnlock()

	for id, list := range conns {
		for _, c := range list {
			fn(id, c)
		}
	}
}
