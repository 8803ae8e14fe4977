package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/issuechat-server/internal/proto"
)

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "identity to announce")
	room := flag.String("room", "general", "room (issue id) to join")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeHello, proto.HelloData{User: *user, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: *room}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *addr, *user, *room)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *room)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func formatMessage(m proto.EventMessage) string {
	return fmt.Sprintf("[%s %s] %s: %s", m.Room, m.Time, m.Sender, m.Message)
}

// render turns one server frame into the lines shown to the user.
func render(out outbound) ([]string, error) {
	if out.Type == proto.OutboundTypeError && out.Error != nil {
		return []string{fmt.Sprintf("error %s: %s", out.Error.Code, out.Error.Msg)}, nil
	}

	switch out.Event {
	case proto.EventNameMessage:
		var m proto.EventMessage
		if err := json.Unmarshal(out.Data, &m); err != nil {
			return nil, err
		}
		return []string{formatMessage(m)}, nil
	case proto.EventNameHistory:
		var h proto.EventHistory
		if err := json.Unmarshal(out.Data, &h); err != nil {
			return nil, err
		}
		lines := []string{fmt.Sprintf("--- %d earlier messages in %s ---", len(h.Messages), h.Room)}
		for _, m := range h.Messages {
			lines = append(lines, formatMessage(m))
		}
		return lines, nil
	case proto.EventNameUserJoined, proto.EventNameUserLeft:
		var p proto.EventUserJoined
		if err := json.Unmarshal(out.Data, &p); err != nil {
			return nil, err
		}
		verb := "joined"
		if out.Event == proto.EventNameUserLeft {
			verb = "left"
		}
		return []string{fmt.Sprintf("* %s %s %s", p.User, verb, p.Room)}, nil
	default:
		return []string{fmt.Sprintf("event=%s data=%s", out.Event, out.Data)}, nil
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			status := websocket.CloseStatus(err)
			if !errors.Is(err, context.Canceled) && status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Printf("connection lost: %v", err)
			}
			return
		}

		lines, err := render(out)
		if err != nil {
			log.Printf("bad %s frame: %v", out.Event, err)
			continue
		}
		for _, line := range lines {
			fmt.Println(line)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := send(ctx, conn, proto.InboundTypeMsg, proto.MsgData{Room: room, Text: text}); err != nil {
				log.Printf("%v", err)
				return
			}
		}
	}
}
