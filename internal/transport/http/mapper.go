package http

import (
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/issuechat-server/internal/core"
	"github.com/vovakirdan/issuechat-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := proto.Decode(inbound.Data, &join); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "join requires a room"}
		}
		return &core.Command{
			Kind:     core.CommandJoinRoom,
			Room:     join.Room,
			Identity: join.User,
		}, nil
	case proto.InboundTypeLeave:
		var leave proto.LeaveData
		if err := proto.Decode(inbound.Data, &leave); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "leave requires a room"}
		}
		return &core.Command{
			Kind: core.CommandLeaveRoom,
			Room: leave.Room,
		}, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := proto.Decode(inbound.Data, &msg); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "msg requires a room and text", Room: msg.Room}
		}
		return &core.Command{
			Kind: core.CommandSendRoomMessage,
			Room: msg.Room,
			Text: msg.Text,
		}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func messageToProto(msg core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:      msg.ID,
		Room:    msg.Room,
		Message: msg.Text,
		Sender:  msg.From,
		Time:    msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func messagesToProto(msgs []core.Message) []proto.EventMessage {
	return lo.Map(msgs, func(m core.Message, _ int) proto.EventMessage {
		return messageToProto(m)
	})
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessage,
			Data:  messageToProto(event.Message),
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserJoined,
			Data:  proto.EventUserJoined{Room: event.Room, User: event.User},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserLeft,
			Data:  proto.EventUserLeft{Room: event.Room, User: event.User},
		}
	case core.EventHistory:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameHistory,
			Data: proto.EventHistory{
				Room:     event.Room,
				Messages: messagesToProto(event.Messages),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message, Room: event.Room},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
