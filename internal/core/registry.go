package core

import "sync"

// Identity is the server-side record of a connected client.
type Identity struct {
	Username string
	Address  string // opaque per-connection identifier
	Rooms    map[string]struct{}
}

// Registry owns the authoritative set of connected users. All access goes
// through its lock; the Directory shares the same lock so that room
// membership stays consistent on both sides.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*Identity
	order []string // usernames in registration order
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*Identity),
	}
}

// Register inserts a new identity with an empty room set. A username that is
// already connected is rejected with ErrUsernameTaken.
func (r *Registry) Register(username, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; exists {
		return ErrUsernameTaken
	}
	r.users[username] = &Identity{
		Username: username,
		Address:  address,
		Rooms:    make(map[string]struct{}),
	}
	r.order = append(r.order, username)
	return nil
}

// Deregister removes the identity. It is a no-op if the user is absent.
func (r *Registry) Deregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregisterLocked(username)
}

func (r *Registry) deregisterLocked(username string) {
	if _, exists := r.users[username]; !exists {
		return
	}
	delete(r.users, username)
	for i, name := range r.order {
		if name == username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Find returns a copy of the identity for username. The copy carries its own
// room set, so callers can read it without holding the lock.
func (r *Registry) Find(username string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.users[username]
	if !ok {
		return Identity{}, false
	}
	cp := Identity{
		Username: id.Username,
		Address:  id.Address,
		Rooms:    make(map[string]struct{}, len(id.Rooms)),
	}
	for room := range id.Rooms {
		cp.Rooms[room] = struct{}{}
	}
	return cp, true
}

// List snapshots connected usernames in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
