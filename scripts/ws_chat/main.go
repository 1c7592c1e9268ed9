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
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// incoming mirrors proto.Outbound with undecoded data.
type incoming struct {
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
	addr := flag.String("addr", "ws://localhost:8090/ws", "WebSocket address")
	nick := flag.String("nick", "", "nickname")
	password := flag.String("password", "", "password")
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

	loginData, err := json.Marshal(proto.LoginData{Nick: *nick, Password: *password})
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeLogin, Data: loginData}); err != nil {
		return fmt.Errorf("send login: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *nick)
	fmt.Println("Type messages and press Enter to send. /more loads older messages. Ctrl+C to exit.")

	tracker := &cursor{}
	go func() {
		defer cancel()
		readLoop(ctx, conn, tracker)
	}()

	writeLoop(ctx, conn, tracker)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

// cursor remembers the oldest message id seen so far.
type cursor struct {
	mu     sync.Mutex
	oldest int64
}

func (c *cursor) observe(msgs []proto.EventMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		if c.oldest == 0 || m.ID < c.oldest {
			c.oldest = m.ID
		}
	}
}

// peek returns nil until a message has been seen, which asks for the newest page.
func (c *cursor) peek() *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.oldest == 0 {
		return nil
	}
	id := c.oldest
	return &id
}

func printMessage(evt proto.EventMessage) {
	ts := time.UnixMilli(evt.TimeMs).Format(time.Kitchen)
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(evt.Payload, &body); err != nil || body.Text == "" {
		fmt.Printf("#%d %s %s: %s\n", evt.ID, ts, evt.Author, string(evt.Payload))
		return
	}
	fmt.Printf("#%d %s %s: %s\n", evt.ID, ts, evt.Author, body.Text)
}

func readLoop(ctx context.Context, conn *websocket.Conn, tracker *cursor) {
	for {
		var in incoming
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch in.Event {
		case proto.EventSessionStarted:
			var evt proto.EventSession
			if err := json.Unmarshal(in.Data, &evt); err == nil {
				fmt.Printf("Logged in to %s. Online: %s\n", evt.Room, strings.Join(evt.Members, ", "))
			}
		case proto.EventLoginRejected:
			var evt proto.EventRejection
			if err := json.Unmarshal(in.Data, &evt); err == nil {
				fmt.Printf("Login rejected: %s\n", evt.Reason)
			}
		case proto.EventPreviousMessage, proto.EventOlderMessages:
			var evt proto.EventOlderPage
			if err := json.Unmarshal(in.Data, &evt); err != nil {
				log.Printf("unmarshal history: %v", err)
				continue
			}
			tracker.observe(evt.Messages)
			for i := len(evt.Messages) - 1; i >= 0; i-- {
				printMessage(evt.Messages[i])
			}
			if in.Event == proto.EventOlderMessages && !evt.HasMore {
				fmt.Println("-- beginning of history --")
			}
		case proto.EventMessagePosted:
			var evt proto.EventMessage
			if err := json.Unmarshal(in.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			printMessage(evt)
		case proto.EventMemberJoined, proto.EventMemberLeft:
			var evt proto.EventMember
			if err := json.Unmarshal(in.Data, &evt); err != nil {
				continue
			}
			verb := "joined"
			if in.Event == proto.EventMemberLeft {
				verb = "left"
			}
			fmt.Printf("* %s %s\n", evt.Nick, verb)
		case proto.EventTypingStatus:
			var evt proto.EventTyping
			if err := json.Unmarshal(in.Data, &evt); err == nil && evt.Status {
				fmt.Printf("* %s is typing...\n", evt.Nick)
			}
		case proto.EventOperationFailed:
			if in.Error != nil {
				fmt.Printf("! %s (%s)\n", in.Error.Msg, in.Error.Code)
			}
		default:
			fmt.Printf("event=%s data=%s\n", in.Event, string(in.Data))
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, tracker *cursor) {
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

			var inbound proto.Inbound
			if text == "/more" {
				data, err := json.Marshal(proto.LoadMoreData{LastID: tracker.peek()})
				if err != nil {
					log.Printf("marshal load-more: %v", err)
					return
				}
				inbound = proto.Inbound{Type: proto.InboundTypeLoadMore, Data: data}
			} else {
				payload, err := json.Marshal(map[string]string{"text": text})
				if err != nil {
					log.Printf("marshal payload: %v", err)
					return
				}
				data, err := json.Marshal(proto.SendMessageData{Payload: payload})
				if err != nil {
					log.Printf("marshal msg: %v", err)
					return
				}
				inbound = proto.Inbound{Type: proto.InboundTypeSend, Data: data}
			}
			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
