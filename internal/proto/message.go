package proto

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypeJoin  = "join"
	InboundTypeLeave = "leave"
	InboundTypeMsg   = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameMessage    = "message"
	EventNameHistory    = "history"
	EventNameUserJoined = "user_joined"
	EventNameUserLeft   = "user_left"
)

// HelloData is sent by the client to introduce itself.
type HelloData struct {
	User     string `json:"user" validate:"required,max=64"`
	Protocol int    `json:"protocol,omitempty"`
}

// JoinData requests to join a specific room. User overrides the hello identity.
type JoinData struct {
	Room string `json:"room" validate:"required,max=128"`
	User string `json:"user,omitempty" validate:"max=64"`
}

// LeaveData requests to leave a room.
type LeaveData struct {
	Room string `json:"room" validate:"required,max=128"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Room string `json:"room" validate:"required,max=128"`
	Text string `json:"text" validate:"required"`
}

// Decode unmarshals data into v and validates it.
func Decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage carries one chat message. Time is RFC 3339 with nanoseconds, UTC.
type EventMessage struct {
	ID      int64  `json:"id,omitempty"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
	Time    string `json:"time"`
}

// EventHistory replays a room's messages, oldest first.
type EventHistory struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// EventUserJoined notifies that a user joined a room.
type EventUserJoined struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// EventUserLeft notifies that a user left a room.
type EventUserLeft struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Room string `json:"room,omitempty"`
}
