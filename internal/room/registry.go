package room

import "sync"

// Subscriber is one live connection as seen by the registry and broadcaster.
// Send must not block: implementations queue on a buffered channel and report
// an error when the peer can no longer keep up.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
	Close()
}

// Registry tracks live connections and which rooms each belongs to. All maps
// are guarded by one mutex; MembersOf returns a snapshot so the broadcaster
// can iterate while joins and leaves continue.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Subscriber          // connID -> connection
	rooms map[string]map[string]struct{} // roomKey -> set of connIDs
	joins map[string]map[string]struct{} // connID -> set of roomKeys
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Subscriber),
		rooms: make(map[string]map[string]struct{}),
		joins: make(map[string]map[string]struct{}),
	}
}

// Register makes the connection resolvable for delivery. It belongs to no
// rooms until Join is called.
func (r *Registry) Register(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sub.ID()] = sub
}

// Join adds the connection to the room's subscriber set. Idempotent.
func (r *Registry) Join(connID, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		return
	}
	if r.rooms[roomKey] == nil {
		r.rooms[roomKey] = make(map[string]struct{})
	}
	r.rooms[roomKey][connID] = struct{}{}
	if r.joins[connID] == nil {
		r.joins[connID] = make(map[string]struct{})
	}
	r.joins[connID][roomKey] = struct{}{}
}

// Leave removes the connection from the room. Already absent is a no-op.
func (r *Registry) Leave(connID, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, roomKey)
}

func (r *Registry) leaveLocked(connID, roomKey string) {
	if members, ok := r.rooms[roomKey]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomKey)
		}
	}
	if joined, ok := r.joins[connID]; ok {
		delete(joined, roomKey)
		if len(joined) == 0 {
			delete(r.joins, connID)
		}
	}
}

// LeaveAll removes the connection from every room it joined and deregisters
// it. Called exactly once on disconnect; returns the rooms left so the caller
// can emit a departure notice to each.
func (r *Registry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for roomKey := range r.joins[connID] {
		left = append(left, roomKey)
	}
	for _, roomKey := range left {
		r.leaveLocked(connID, roomKey)
	}
	delete(r.conns, connID)
	return left
}

// MembersOf returns a snapshot of the room's current subscriber ids.
func (r *Registry) MembersOf(roomKey string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]string, 0, len(r.rooms[roomKey]))
	for connID := range r.rooms[roomKey] {
		members = append(members, connID)
	}
	return members
}

// Get resolves a connection id to its live connection.
func (r *Registry) Get(connID string) (Subscriber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.conns[connID]
	return sub, ok
}
