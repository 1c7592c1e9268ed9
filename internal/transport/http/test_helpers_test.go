package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/store/migrations"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	auth  *auth.Service
	store *sqlite.SQLiteStore
}

// createTestStore creates an in-memory SQLite store with the schema applied.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	schema, err := migrations.FS.ReadFile("sqlite/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(string(schema))
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startTestServer(t *testing.T, batchSize int) *testEnv {
	t.Helper()

	st := createTestStore(t)
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(authService, st, core.WithBatchSize(batchSize), core.WithLogger(&disabledLogger))

	cfg := config.Default()
	cfg.MaxMessageBytes = 4096
	cfg.MetricsEnabled = true

	server := NewServer(hub, authService, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})

	return &testEnv{ts: ts, hub: hub, auth: authService, store: st}
}

func (e *testEnv) register(t *testing.T, username, password string, viewHistory bool) {
	t.Helper()
	if _, err := e.auth.Register(context.Background(), username, password, viewHistory); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func (e *testEnv) dial(ctx context.Context, t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data string) {
	t.Helper()
	inbound := proto.Inbound{Type: typ}
	if data != "" {
		inbound.Data = []byte(data)
	}
	if err := wsjson.Write(ctx, conn, inbound); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// rawOutbound keeps data undecoded so each test can pick its payload type.
type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil reads frames until one with the given event name arrives.
func readUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) rawOutbound {
	t.Helper()
	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if out.Event == event {
			return out
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

// login dials, logs in and waits for the session to start.
func (e *testEnv) login(ctx context.Context, t *testing.T, nick, password string) *websocket.Conn {
	t.Helper()
	conn := e.dial(ctx, t)
	send(ctx, t, conn, proto.InboundTypeLogin, `{"nick":"`+nick+`","password":"`+password+`"}`)
	readUntil(ctx, t, conn, proto.EventSessionStarted)
	return conn
}
