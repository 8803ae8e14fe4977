package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vovakirdan/issuechat-server/internal/core"
	"github.com/vovakirdan/issuechat-server/internal/proto"
)

func TestInboundToCommand(t *testing.T) {
	join, _ := json.Marshal(proto.JoinData{Room: "issue-42", User: "A"})
	cmd, protoErr := inboundToCommand(proto.Inbound{Type: proto.InboundTypeJoin, Data: join})
	if protoErr != nil {
		t.Fatalf("unexpected error: %+v", protoErr)
	}
	if cmd.Kind != core.CommandJoinRoom || cmd.Room != "issue-42" || cmd.Identity != "A" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	msg, _ := json.Marshal(proto.MsgData{Room: "issue-42", Text: "need help"})
	cmd, protoErr = inboundToCommand(proto.Inbound{Type: proto.InboundTypeMsg, Data: msg})
	if protoErr != nil || cmd.Kind != core.CommandSendRoomMessage || cmd.Text != "need help" {
		t.Fatalf("unexpected mapping: %+v %+v", cmd, protoErr)
	}

	empty, _ := json.Marshal(proto.MsgData{Room: "issue-42"})
	if _, protoErr = inboundToCommand(proto.Inbound{Type: proto.InboundTypeMsg, Data: empty}); protoErr == nil || protoErr.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request for empty text, got %+v", protoErr)
	}

	if _, protoErr = inboundToCommand(proto.Inbound{Type: proto.InboundTypeLeave, Data: json.RawMessage(`{"room":`)}); protoErr == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestOutboundFromMessageEvent(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 30, 0, 123456789, time.FixedZone("X", 3*3600))
	out := outboundFromEvent(&core.Event{
		Kind: core.EventRoomMessage,
		Room: "issue-42",
		Message: core.Message{
			ID: 7, Room: "issue-42", From: "A", Text: "need help", CreatedAt: at,
		},
	})

	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventNameMessage {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	data, ok := out.Data.(proto.EventMessage)
	if !ok {
		t.Fatalf("unexpected data type %T", out.Data)
	}
	if data.Time != "2026-10-17T06:30:00.123456789Z" || data.Sender != "A" || data.Message != "need help" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestOutboundFromErrorEvent(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:  core.EventError,
		Room:  "r",
		Error: &core.CoreError{Code: core.ErrCodeStorageUnavailable, Message: "down"},
	})
	if out.Type != proto.OutboundTypeError || out.Error.Code != core.ErrCodeStorageUnavailable || out.Error.Room != "r" {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}
