package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/migrations"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	schema, err := migrations.FS.ReadFile("sqlite/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(string(schema))
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendMessageAssignsIncreasingIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var last int64
	for i, body := range []string{`{"text":"a"}`, `{"text":"b"}`, `{"text":"c"}`, `{"text":"d"}`} {
		msg, err := s.AppendMessage(ctx, "alice", body)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if msg.ID <= last {
			t.Fatalf("id %d not greater than previous %d", msg.ID, last)
		}
		if msg.SentAt.IsZero() {
			t.Fatalf("expected store-assigned timestamp")
		}
		if msg.Author != "alice" || msg.Body != body {
			t.Fatalf("unexpected message: %+v", msg)
		}
		last = msg.ID
	}
}

func TestRecentAndBeforeOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 5 {
		if _, err := s.AppendMessage(ctx, "bob", `{"text":"x"}`); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tests := []struct {
		name   string
		before int64
		limit  int
		want   []int64
	}{
		{name: "recent", before: 0, limit: 2, want: []int64{5, 4}},
		{name: "before 4", before: 4, limit: 2, want: []int64{3, 2}},
		{name: "before 2", before: 2, limit: 2, want: []int64{1}},
		{name: "before 1", before: 1, limit: 2, want: nil},
		{name: "cursor past end", before: 100, limit: 3, want: []int64{5, 4, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got []*store.Message
				err error
			)
			if tt.before == 0 {
				got, err = s.RecentMessages(ctx, tt.limit)
			} else {
				got, err = s.MessagesBefore(ctx, tt.before, tt.limit)
			}
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d rows, got %d", len(tt.want), len(got))
			}
			for i, msg := range got {
				if msg.ID != tt.want[i] {
					t.Errorf("row %d: expected id %d, got %d", i, tt.want[i], msg.ID)
				}
				if tt.before != 0 && msg.ID >= tt.before {
					t.Errorf("row %d: id %d not below cursor %d", i, msg.ID, tt.before)
				}
			}
		})
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "hash", true)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == 0 || !user.ViewHistory {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := s.CreateUser(ctx, "alice", "other", false); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetViewHistory(ctx, "alice", false); err != nil {
		t.Fatalf("set view history: %v", err)
	}
	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ViewHistory {
		t.Fatalf("expected view history disabled")
	}

	if err := s.SetViewHistory(ctx, "nobody", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.AppendMessage(context.Background(), "carol", `{"text":"hi"}`); err != nil {
		t.Fatalf("append after migrate: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening must be a no-op migration.
	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	msgs, err := s.RecentMessages(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Author != "carol" {
		t.Fatalf("unexpected messages after reopen: %+v", msgs)
	}
}
