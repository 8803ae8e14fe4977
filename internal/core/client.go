package core

import (
	"sort"
	"sync"
)

const defaultEventBuffer = 64

// Client is one live connection as seen by the core layer.
// It remembers every room it joined and the identity used there.
type Client struct {
	ID     string
	Events chan *Event

	mu    sync.Mutex
	name  string
	rooms map[string]string
}

// NewClient constructs a client. buffer <= 0 selects the default event buffer.
func NewClient(id, name string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, buffer),
		name:   name,
		rooms:  make(map[string]string),
	}
}

// Name returns the identity announced by the connection.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// SetName updates the announced identity. Rooms already joined keep theirs.
func (c *Client) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// Identity returns the identity the client uses in room.
func (c *Client) Identity(room string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.rooms[room]
	return id, ok
}

// Rooms returns the joined rooms, sorted.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Send queues an event without blocking. It reports false when the buffer is full.
func (c *Client) Send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) track(room, identity string) {
	c.mu.Lock()
	c.rooms[room] = identity
	c.mu.Unlock()
}

func (c *Client) untrack(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}
