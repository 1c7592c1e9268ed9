package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

type account struct {
	password    string
	viewHistory bool
}

// fakeVerifier is an in-memory credential store that counts calls.
type fakeVerifier struct {
	mu       sync.Mutex
	accounts map[string]account
	calls    int
	err      error
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{accounts: make(map[string]account)}
}

func (f *fakeVerifier) add(nick, password string, viewHistory bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[nick] = account{password: password, viewHistory: viewHistory}
}

func (f *fakeVerifier) Verify(_ context.Context, username, password string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, false, f.err
	}
	acc, ok := f.accounts[username]
	if !ok || acc.password != password {
		return false, false, nil
	}
	return true, acc.viewHistory, nil
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memStore is an in-memory store.MessageStore.
type memStore struct {
	mu          sync.Mutex
	rows        []*store.Message
	nextID      int64
	appendCalls int
	failAppend  error
	failRead    error
}

func (m *memStore) AppendMessage(_ context.Context, author, body string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.failAppend != nil {
		return nil, m.failAppend
	}
	return m.insertLocked(author, body), nil
}

// seed inserts a row bypassing validation, e.g. a malformed body.
func (m *memStore) seed(author, body string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(author, body).ID
}

func (m *memStore) insertLocked(author, body string) *store.Message {
	m.nextID++
	msg := &store.Message{
		ID:     m.nextID,
		Author: author,
		Body:   body,
		SentAt: time.Unix(1_700_000_000+m.nextID, 250_000_000).UTC(),
	}
	m.rows = append(m.rows, msg)
	return msg
}

func (m *memStore) RecentMessages(_ context.Context, limit int) ([]*store.Message, error) {
	return m.before(0, limit)
}

func (m *memStore) MessagesBefore(_ context.Context, beforeID int64, limit int) ([]*store.Message, error) {
	return m.before(beforeID, limit)
}

func (m *memStore) before(beforeID int64, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return nil, m.failRead
	}
	var out []*store.Message
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if beforeID != 0 && m.rows[i].ID >= beforeID {
			continue
		}
		out = append(out, m.rows[i])
	}
	return out, nil
}

func (m *memStore) appendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []Message
}

func (p *recordingPublisher) PublishMessage(_ string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return errors.New("broker down")
}

func newTestHub(t *testing.T, opts ...Option) (*Hub, *fakeVerifier, *memStore) {
	t.Helper()
	creds := newFakeVerifier()
	msgs := &memStore{}
	return NewHub(creds, msgs, opts...), creds, msgs
}

// connect registers a new client and logs it in, failing the test on error.
func connect(t *testing.T, hub *Hub, id, nick, password string) *Client {
	t.Helper()
	c := NewClient(id)
	hub.RegisterClient(c)
	if err := hub.Login(context.Background(), c, nick, password); err != nil {
		t.Fatalf("login %s as %s: %v", id, nick, err)
	}
	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for event kind %v", kind)
			}
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if an event is queued. A closed channel counts as empty.
func noEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
	}
}

// drain discards every queued event.
func drain(ch <-chan *Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func ids(msgs []Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
