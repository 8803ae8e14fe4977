package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/issuechat-server/internal/notify"
	"github.com/vovakirdan/issuechat-server/internal/store"
)

// Notifier accepts notices for background delivery.
type Notifier interface {
	Enqueue(n notify.Notice) error
}

// Hub coordinates room membership, message posting and absentee fan-out.
//
// Each room has its own lock, so unrelated rooms never wait on each other.
// Lock order is room before hub; the hub lock only guards the room map.
type Hub struct {
	messages store.MessageLog
	users    store.UserDirectory
	issues   store.IssueDirectory
	notifier Notifier
	presence *Registry
	logger   *zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub creates a hub. users, issues and notifier may be nil, which disables
// the corresponding part of the fan-out.
func NewHub(messages store.MessageLog, users store.UserDirectory, issues store.IssueDirectory, notifier Notifier, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		messages: messages,
		users:    users,
		issues:   issues,
		notifier: notifier,
		presence: NewRegistry(),
		logger:   logger,
		rooms:    make(map[string]*room),
	}
}

// Presence exposes the registry for read-only queries.
func (h *Hub) Presence() *Registry {
	return h.presence
}

// Join adds the client to roomName under identity and privately sends it the
// room history. A history failure is reported to the client as an error event;
// the membership is kept. Joining the same room again re-sends the history.
func (h *Hub) Join(ctx context.Context, client *Client, roomName, identity string) {
	r := h.acquire(roomName)
	defer h.release(r)

	prev, rejoin := r.members[client]
	announce := !r.hasIdentity(identity, nil)
	if rejoin && prev != identity {
		h.dropIdentity(r, client, prev)
	}

	r.members[client] = identity
	client.track(roomName, identity)
	h.presence.Join(roomName, identity)

	history, err := h.messages.History(ctx, roomName)
	if err != nil {
		serr := &StorageError{Op: "history", Room: roomName, Err: err}
		h.logger.Error().Err(serr).Str("room", roomName).Str("client_id", client.ID).Msg("history unavailable")
		client.Send(errorEvent(roomName, ErrCodeStorageUnavailable, "history is temporarily unavailable"))
	} else {
		client.Send(&Event{Kind: EventHistory, Room: roomName, Messages: messagesFromStore(history)})
	}

	if announce {
		r.broadcast(&Event{Kind: EventUserJoined, Room: roomName, User: identity})
	}

	h.logger.Debug().
		Str("room", roomName).
		Str("client_id", client.ID).
		Str("identity", identity).
		Bool("rejoin", rejoin).
		Msg("client joined room")
}

// Leave removes the client from roomName.
func (h *Hub) Leave(client *Client, roomName string) error {
	r := h.existing(roomName)
	if r == nil {
		return ErrNotInRoom
	}
	defer h.release(r)

	if _, ok := r.members[client]; !ok {
		return ErrNotInRoom
	}
	h.leaveLocked(r, client)
	return nil
}

// Disconnect removes the client from every room it joined. It always succeeds
// and may be called more than once. The Events channel is left open.
func (h *Hub) Disconnect(client *Client) {
	for _, name := range client.Rooms() {
		r := h.existing(name)
		if r == nil {
			client.untrack(name)
			continue
		}
		if _, ok := r.members[client]; ok {
			h.leaveLocked(r, client)
		} else {
			client.untrack(name)
		}
		h.release(r)
	}
}

// PostMessage appends a message to the room log, broadcasts it to every
// connection in the room and schedules notices for absent users.
// If the append fails nothing is broadcast or notified and a *StorageError is returned.
func (h *Hub) PostMessage(ctx context.Context, roomName, sender, body string) (Message, error) {
	r := h.acquire(roomName)

	stored, err := h.messages.Append(ctx, roomName, sender, body)
	if err != nil {
		h.release(r)
		return Message{}, &StorageError{Op: "append", Room: roomName, Err: err}
	}

	msg := messageFromStore(stored)
	if dropped := r.broadcast(&Event{Kind: EventRoomMessage, Room: roomName, User: sender, Message: msg}); dropped > 0 {
		h.logger.Warn().Str("room", roomName).Int("dropped", dropped).Msg("slow consumers skipped message")
	}
	present := h.presence.Present(roomName)
	h.release(r)

	h.fanOut(ctx, msg, present)
	return msg, nil
}

// History returns the ordered messages of a room. Unknown rooms are empty.
func (h *Hub) History(ctx context.Context, roomName string) ([]Message, error) {
	history, err := h.messages.History(ctx, roomName)
	if err != nil {
		return nil, &StorageError{Op: "history", Room: roomName, Err: err}
	}
	return messagesFromStore(history), nil
}

// Handle executes a client command. Failures are reported to the client as error events.
func (h *Hub) Handle(ctx context.Context, client *Client, cmd Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		identity := cmd.Identity
		if identity == "" {
			identity = client.Name()
		}
		if cmd.Room == "" || identity == "" {
			client.Send(errorEvent(cmd.Room, ErrCodeBadRequest, "room and user are required"))
			return
		}
		h.Join(ctx, client, cmd.Room, identity)

	case CommandLeaveRoom:
		if err := h.Leave(client, cmd.Room); err != nil {
			client.Send(errorEvent(cmd.Room, ErrCodeNotInRoom, "not in room"))
		}

	case CommandSendRoomMessage:
		sender, ok := client.Identity(cmd.Room)
		if !ok {
			client.Send(errorEvent(cmd.Room, ErrCodeNotInRoom, "join the room before posting"))
			return
		}
		if _, err := h.PostMessage(ctx, cmd.Room, sender, cmd.Text); err != nil {
			var serr *StorageError
			if errors.As(err, &serr) {
				h.logger.Error().Err(err).Str("room", cmd.Room).Str("client_id", client.ID).Msg("message not stored")
				client.Send(errorEvent(cmd.Room, ErrCodeStorageUnavailable, "message could not be stored"))
				return
			}
			client.Send(errorEvent(cmd.Room, ErrCodeBadRequest, err.Error()))
		}

	default:
		client.Send(errorEvent(cmd.Room, ErrCodeBadRequest, fmt.Sprintf("unknown command %d", cmd.Kind)))
	}
}

// leaveLocked removes the client from r. The room lock must be held.
func (h *Hub) leaveLocked(r *room, client *Client) {
	identity := r.members[client]
	delete(r.members, client)
	client.untrack(r.name)
	h.dropIdentity(r, client, identity)

	h.logger.Debug().
		Str("room", r.name).
		Str("client_id", client.ID).
		Str("identity", identity).
		Msg("client left room")
}

// dropIdentity clears identity from presence unless another connection still uses it.
func (h *Hub) dropIdentity(r *room, client *Client, identity string) {
	if r.hasIdentity(identity, client) {
		return
	}
	h.presence.Leave(r.name, identity)
	r.broadcast(&Event{Kind: EventUserLeft, Room: r.name, User: identity})
}

// acquire returns the locked room, creating it when needed.
func (h *Hub) acquire(name string) *room {
	for {
		h.mu.Lock()
		r, ok := h.rooms[name]
		if !ok {
			r = newRoom(name)
			h.rooms[name] = r
		}
		h.mu.Unlock()

		r.mu.Lock()
		if !r.closed {
			return r
		}
		r.mu.Unlock()
	}
}

// existing returns the locked room, or nil if it does not exist.
func (h *Hub) existing(name string) *room {
	for {
		h.mu.Lock()
		r, ok := h.rooms[name]
		h.mu.Unlock()
		if !ok {
			return nil
		}

		r.mu.Lock()
		if !r.closed {
			return r
		}
		r.mu.Unlock()
	}
}

// release unlocks r and drops it from the map once no connection remains.
func (h *Hub) release(r *room) {
	if len(r.members) == 0 {
		r.closed = true
		h.mu.Lock()
		if h.rooms[r.name] == r {
			delete(h.rooms, r.name)
		}
		h.mu.Unlock()
	}
	r.mu.Unlock()
}
