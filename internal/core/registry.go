package core

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry tracks which identities are present in each room.
// All mutation goes through Join and Leave.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]struct{})}
}

// Join adds identity to room. Repeated joins are no-ops.
func (r *Registry) Join(room, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[identity] = struct{}{}
}

// Leave removes identity from room if present.
func (r *Registry) Leave(room, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, identity)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Present returns a copy of the identities in room.
func (r *Registry) Present(room string) map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make(map[string]struct{}, len(members))
	for id := range members {
		out[id] = struct{}{}
	}
	return out
}

// Contains reports whether identity is present in room.
func (r *Registry) Contains(room, identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[room][identity]
	return ok
}

// Members returns the identities in room, sorted.
func (r *Registry) Members(room string) []string {
	members := lo.Keys(r.Present(room))
	sort.Strings(members)
	return members
}
