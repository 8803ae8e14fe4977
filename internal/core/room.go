package core

import "sync"

// room holds the live connections of one chat room.
// mu serializes join, leave and post for the room.
type room struct {
	mu      sync.Mutex
	name    string
	members map[*Client]string
	closed  bool
}

func newRoom(name string) *room {
	return &room{
		name:    name,
		members: make(map[*Client]string),
	}
}

// hasIdentity reports whether any connection other than skip uses identity.
// A nil skip checks every connection.
func (r *room) hasIdentity(identity string, skip *Client) bool {
	for c, id := range r.members {
		if c != skip && id == identity {
			return true
		}
	}
	return false
}

// broadcast sends an event to every connection in the room.
// It returns the number of connections whose buffer was full.
func (r *room) broadcast(ev *Event) int {
	dropped := 0
	for c := range r.members {
		if !c.Send(ev) {
			dropped++
		}
	}
	return dropped
}
