package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

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
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "identity to announce with hello")
	room := flag.String("room", "general", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	steps := []struct {
		typ  string
		data any
	}{
		{proto.InboundTypeHello, proto.HelloData{User: *user, Protocol: proto.ProtocolVersion}},
		{proto.InboundTypeJoin, proto.JoinData{Room: *room}},
		{proto.InboundTypeMsg, proto.MsgData{Room: *room, Text: *text}},
	}
	for _, step := range steps {
		payload, err := json.Marshal(step.data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", step.typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: step.typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", step.typ, err)
		}
	}

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", out.Type)
		if out.Event != "" {
			fmt.Printf(" event=%s", out.Event)
		}
		fmt.Println()

		if out.Error != nil {
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		}

		switch out.Event {
		case proto.EventNameHistory:
			var evt proto.EventHistory
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("History: room=%s messages=%d\n", evt.Room, len(evt.Messages))
			}
		case proto.EventNameMessage:
			var evt proto.EventMessage
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", string(out.Data))
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("EventMessage: room=%s sender=%s message=%q time=%s\n", evt.Room, evt.Sender, evt.Message, evt.Time)
			return checkHistory(ctx, *addr, *room, *text)
		case proto.EventNameUserJoined:
			var evt proto.EventUserJoined
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("Join: room=%s user=%s\n", evt.Room, evt.User)
			}
		}
	}
}

// checkHistory confirms the message is served by the REST history endpoint.
func checkHistory(ctx context.Context, wsAddr, room, text string) error {
	base := strings.TrimSuffix(strings.Replace(wsAddr, "ws", "http", 1), "/ws")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/chat/"+room, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}
	defer resp.Body.Close()

	var history []proto.EventMessage
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	if len(history) == 0 || history[len(history)-1].Message != text {
		return fmt.Errorf("history does not end with the sent message")
	}
	fmt.Printf("History OK: %d messages\n", len(history))
	return nil
}
