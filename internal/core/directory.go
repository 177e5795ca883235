package core

import "sort"

// Reserved room names. Comparison is exact-match and case-sensitive, applied
// after the command parser has trimmed the name.
var reservedRoomNames = map[string]struct{}{
	"glb": {},
	"adm": {},
}

// Room groups users subscribed to the same named scope. Members are tracked
// by username; the identity side of the relation lives in Registry.
type Room struct {
	Name    string
	members map[string]struct{}
}

// Directory owns the set of rooms. It shares the Registry's lock, so a join
// or leave updates Room.members and Identity.Rooms in one critical section
// and readers of either structure never observe a half-applied membership.
type Directory struct {
	reg   *Registry
	rooms map[string]*Room
	order []string // room names in creation order
}

// NewDirectory constructs an empty directory bound to reg.
func NewDirectory(reg *Registry) *Directory {
	return &Directory{
		reg:   reg,
		rooms: make(map[string]*Room),
	}
}

// Create adds a new empty room. Reserved names and duplicates are rejected.
func (d *Directory) Create(name string) error {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	if _, reserved := reservedRoomNames[name]; reserved {
		return ErrRoomNameReserved
	}
	if _, exists := d.rooms[name]; exists {
		return ErrRoomExists
	}
	d.rooms[name] = &Room{
		Name:    name,
		members: make(map[string]struct{}),
	}
	d.order = append(d.order, name)
	return nil
}

// Join adds username to the room and the room to the user's identity.
// Joining a room twice is a no-op.
func (d *Directory) Join(roomName, username string) error {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	room, ok := d.rooms[roomName]
	if !ok {
		return ErrRoomNotFound
	}
	id, ok := d.reg.users[username]
	if !ok {
		return ErrUserNotFound
	}
	room.members[username] = struct{}{}
	id.Rooms[roomName] = struct{}{}
	return nil
}

// Leave removes username from the room and the room from the user's identity.
func (d *Directory) Leave(roomName, username string) error {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	room, ok := d.rooms[roomName]
	if !ok {
		return ErrRoomNotFound
	}
	if _, member := room.members[username]; !member {
		return ErrNotAMember
	}
	delete(room.members, username)
	if id, ok := d.reg.users[username]; ok {
		delete(id.Rooms, roomName)
	}
	return nil
}

// IsMember reports whether username currently belongs to the room.
func (d *Directory) IsMember(roomName, username string) bool {
	d.reg.mu.RLock()
	defer d.reg.mu.RUnlock()

	room, ok := d.rooms[roomName]
	if !ok {
		return false
	}
	_, member := room.members[username]
	return member
}

// Members snapshots the room's member usernames, sorted.
func (d *Directory) Members(roomName string) ([]string, error) {
	d.reg.mu.RLock()
	defer d.reg.mu.RUnlock()

	room, ok := d.rooms[roomName]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make([]string, 0, len(room.members))
	for name := range room.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ListRooms snapshots room names in creation order. Rooms persist for the
// process lifetime; empty rooms are not collected.
func (d *Directory) ListRooms() []string {
	d.reg.mu.RLock()
	defer d.reg.mu.RUnlock()

	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Disconnect removes the user from every room and deregisters the identity,
// all under one critical section. Idempotent for unknown users.
func (d *Directory) Disconnect(username string) {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	id, ok := d.reg.users[username]
	if ok {
		for roomName := range id.Rooms {
			if room, exists := d.rooms[roomName]; exists {
				delete(room.members, username)
			}
		}
	}
	d.reg.deregisterLocked(username)
}
