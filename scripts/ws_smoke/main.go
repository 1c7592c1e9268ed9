package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomchat/internal/proto"
)

type incoming struct {
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
	addr := flag.String("addr", "ws://localhost:8090/ws", "WebSocket address")
	nick := flag.String("nick", "tester", "nickname to log in with")
	password := flag.String("password", "tester", "password")
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

	mustSend := func(typ string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: data}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := mustSend(proto.InboundTypeLogin, proto.LoginData{Nick: *nick, Password: *password}); err != nil {
		return err
	}

	for {
		var in incoming
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received: type=%s event=%s\n", in.Type, in.Event)
		if in.Error != nil {
			fmt.Printf("Error: %s (%s)\n", in.Error.Msg, in.Error.Code)
		}

		switch in.Event {
		case proto.EventLoginRejected:
			var evt proto.EventRejection
			_ = json.Unmarshal(in.Data, &evt)
			return fmt.Errorf("login rejected: %s", evt.Reason)
		case proto.EventSessionStarted:
			var evt proto.EventSession
			if err := json.Unmarshal(in.Data, &evt); err == nil {
				fmt.Printf("Session: room=%s members=%v\n", evt.Room, evt.Members)
			}
			payload, err := json.Marshal(map[string]string{"text": *text})
			if err != nil {
				return fmt.Errorf("marshal payload: %w", err)
			}
			if err := mustSend(proto.InboundTypeSend, proto.SendMessageData{Payload: payload}); err != nil {
				return err
			}
		case proto.EventMessagePosted:
			var evt proto.EventMessage
			if err := json.Unmarshal(in.Data, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", string(in.Data))
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: id=%d author=%s payload=%s timeMs=%d\n", evt.ID, evt.Author, evt.Payload, evt.TimeMs)
			if evt.Author == *nick {
				return nil
			}
		default:
			// keep looping for our own message
		}
	}
}
