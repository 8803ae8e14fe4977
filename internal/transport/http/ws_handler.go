package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/issuechat-server/internal/core"
	"github.com/vovakirdan/issuechat-server/internal/proto"
)

const errCodeUnsupportedVersion = "unsupported_version"

// WSOptions limits what a single connection may do.
type WSOptions struct {
	MaxMessageBytes    int64
	RateLimitPerMinute int
	ClientBuffer       int
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), "", h.opts.ClientBuffer)
	defer h.hub.Disconnect(client)

	h.log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if inbound.Type == proto.InboundTypeHello {
			if protoErr := h.hello(client, inbound); protoErr != nil {
				if err := writeError(ctx, conn, protoErr); err != nil {
					return err
				}
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr == nil && cmd.Kind == core.CommandSendRoomMessage && !limiter.allow() {
			protoErr = &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages", Room: cmd.Room}
		}
		if protoErr != nil {
			if err := writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		h.hub.Handle(ctx, client, *cmd)
	}
}

func (h *WSHandler) hello(client *core.Client, inbound proto.Inbound) *proto.Error {
	var hello proto.HelloData
	if err := proto.Decode(inbound.Data, &hello); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "hello requires a user"}
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return &proto.Error{Code: errCodeUnsupportedVersion, Msg: "unsupported protocol version"}
	}
	client.SetName(hello.User)
	h.log.Debug().Str("client_id", client.ID).Str("user", hello.User).Msg("ws hello")
	return nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: protoErr,
	})
}
