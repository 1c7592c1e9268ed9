package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/metrics"
	"github.com/vovakirdan/roomchat/internal/store"
)

// DefaultBatchSize is the page size for history and load-more queries.
const DefaultBatchSize = 50

// CredentialVerifier checks a username/password pair. ok is false for both an
// unknown user and a wrong password; err is reserved for infrastructure failures.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (ok, viewHistory bool, err error)
}

// Limiter throttles chat messages per nickname.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Publisher receives every message after it has been persisted.
type Publisher interface {
	PublishMessage(room string, msg Message) error
}

// Option configures a Hub.
type Option func(*Hub)

// WithBatchSize sets the history page size. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.batchSize = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithLimiter enables per-nickname message rate limiting.
func WithLimiter(l Limiter) Option {
	return func(h *Hub) { h.limiter = l }
}

// WithPublisher forwards every persisted message to p.
func WithPublisher(p Publisher) Option {
	return func(h *Hub) { h.publisher = p }
}

// Hub is the session coordinator. It owns the connection registry, the
// presence set and the room, and runs the per-connection login state machine.
//
// All registry, presence and room mutations happen under mu together with the
// broadcasts they cause, so every connection observes presence changes in one
// order. Credential checks and store calls run outside the lock on the calling
// connection's goroutine; callers must invoke operations for a given client
// sequentially to keep that client's events in order.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*Client
	presence *Presence
	room     *Room
	closed   bool

	creds     CredentialVerifier
	messages  store.MessageStore
	limiter   Limiter
	publisher Publisher
	batchSize int
	log       *zerolog.Logger
}

// NewHub creates a coordinator for the single shared room.
func NewHub(creds CredentialVerifier, messages store.MessageStore, opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		clients:   make(map[string]*Client),
		presence:  NewPresence(),
		creds:     creds,
		messages:  messages,
		batchSize: DefaultBatchSize,
		log:       &nop,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.room = NewRoom(DefaultRoom, h.log)
	return h
}

// RegisterClient adds a fresh anonymous connection to the registry.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.state = StateClosed
		close(c.Events)
		return
	}
	h.clients[c.ID] = c
	metrics.ConnectionsActive.Inc()
	h.log.Debug().Str("client_id", c.ID).Msg("client registered")
}

// UnregisterClient is called when the transport loses the connection.
func (h *Hub) UnregisterClient(c *Client) {
	h.Disconnect(c)
}

// Dispatch routes a command to the matching operation.
func (h *Hub) Dispatch(ctx context.Context, c *Client, cmd *Command) error {
	switch cmd.Kind {
	case CommandLogin:
		return h.Login(ctx, c, cmd.Nick, cmd.Password)
	case CommandSendMessage:
		return h.PostMessage(ctx, c, cmd.Payload)
	case CommandTyping:
		h.SetTyping(c, cmd.Typing)
		return nil
	case CommandLoadMore:
		return h.LoadMore(ctx, c, cmd.Before)
	default:
		return fmt.Errorf("%w: unknown command %d", ErrValidation, cmd.Kind)
	}
}

// Login authenticates c and joins it to the room.
func (h *Hub) Login(ctx context.Context, c *Client, nick, password string) error {
	switch h.State(c) {
	case StateAuthenticated:
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		_ = h.send(c, errorEvent(ErrCodeAlreadyAuthenticated, reasonAlreadyLoggedIn))
		return ErrAlreadyAuthenticated
	case StateClosed:
		return ErrClosed
	}

	nick = strings.TrimSpace(nick)
	if nick == "" || strings.TrimSpace(password) == "" {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		_ = h.send(c, rejected(ErrCodeValidation, reasonMissingFields))
		return fmt.Errorf("%w: nickname and password are required", ErrValidation)
	}

	ok, viewHistory, err := h.creds.Verify(ctx, nick, password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Str("client_id", c.ID).Msg("credential check failed")
		_ = h.send(c, rejected(ErrCodePersistence, reasonAuthServerError))
		return fmt.Errorf("%w: verify credentials: %w", ErrPersistence, err)
	}
	if !ok {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		h.log.Info().Str("client_id", c.ID).Msg("login rejected")
		_ = h.send(c, rejected(ErrCodeInvalidCredentials, reasonBadCredentials))
		return ErrAuthentication
	}

	h.mu.Lock()
	switch c.state {
	case StateAuthenticated:
		h.mu.Unlock()
		return ErrAlreadyAuthenticated
	case StateClosed:
		h.mu.Unlock()
		return ErrClosed
	}
	c.nick = nick
	c.state = StateAuthenticated
	if h.presence.Add(nick) {
		// The joiner is not in the room yet and learns about itself from the snapshot.
		h.room.BroadcastToAll(&Event{Kind: EventUserJoined, Room: h.room.Name, User: nick})
		metrics.PresenceMembers.Set(float64(h.presence.Len()))
	}
	h.room.AddClient(c)
	_ = h.room.SendTo(c, &Event{
		Kind:  EventSessionStarted,
		Room:  h.room.Name,
		User:  nick,
		Users: h.presence.Members(),
	})
	conns := h.presence.Connections(nick)
	roomSize := h.room.Len()
	h.mu.Unlock()

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	h.log.Info().Str("client_id", c.ID).Str("nick", nick).Int("connections", conns).Int("room_size", roomSize).Msg("user joined")

	if viewHistory {
		h.sendHistory(ctx, c)
	}
	return nil
}

func (h *Hub) sendHistory(ctx context.Context, c *Client) {
	start := time.Now()
	rows, err := h.messages.RecentMessages(ctx, h.batchSize)
	observe("recent", start)
	if err != nil {
		h.log.Error().Err(err).Str("client_id", c.ID).Msg("load history")
		_ = h.send(c, errorEvent(ErrCodePersistence, reasonHistoryFailed))
		return
	}
	_ = h.send(c, &Event{
		Kind:     EventHistory,
		Room:     h.room.Name,
		Messages: fromStored(rows, dropMalformed, h.log),
	})
}

// PostMessage persists payload and broadcasts it to every room member,
// including the sender.
func (h *Hub) PostMessage(ctx context.Context, c *Client, payload json.RawMessage) error {
	nick, ok := h.authenticated(c)
	if !ok {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		_ = h.send(c, rejected(ErrCodeNotAuthenticated, reasonLoginToSend))
		return ErrNotAuthenticated
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) || !json.Valid(payload) {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		_ = h.send(c, errorEvent(ErrCodeValidation, reasonEmptyPayload))
		return fmt.Errorf("%w: empty or malformed payload", ErrValidation)
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, nick)
		if err != nil {
			h.log.Warn().Err(err).Str("nick", nick).Msg("rate limiter unavailable")
		}
		if !allowed {
			metrics.MessagesTotal.WithLabelValues("limited").Inc()
			_ = h.send(c, errorEvent(ErrCodeRateLimited, reasonRateLimited))
			return ErrRateLimited
		}
	}

	start := time.Now()
	stored, err := h.messages.AppendMessage(ctx, nick, string(payload))
	observe("append", start)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		h.log.Error().Err(err).Str("nick", nick).Msg("persist message")
		_ = h.send(c, errorEvent(ErrCodePersistence, reasonSendFailed))
		return fmt.Errorf("%w: append message: %w", ErrPersistence, err)
	}

	msg := Message{
		ID:        stored.ID,
		From:      nick,
		Payload:   payload,
		CreatedAt: stored.SentAt,
	}

	h.mu.Lock()
	h.room.BroadcastToAll(&Event{Kind: EventRoomMessage, Room: h.room.Name, User: nick, Message: msg})
	h.mu.Unlock()

	metrics.MessagesTotal.WithLabelValues("posted").Inc()
	h.log.Debug().Str("nick", nick).Int64("msg_id", msg.ID).Msg("message posted")

	if h.publisher != nil {
		if err := h.publisher.PublishMessage(h.room.Name, msg); err != nil {
			h.log.Warn().Err(err).Int64("msg_id", msg.ID).Msg("publish message")
		}
	}
	return nil
}

// SetTyping broadcasts a typing indicator to everyone but the sender.
// Anonymous connections are ignored silently.
func (h *Hub) SetTyping(c *Client, typing bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.state != StateAuthenticated {
		return
	}
	h.room.BroadcastToOthers(c, &Event{Kind: EventTyping, Room: h.room.Name, User: c.nick, Typing: typing})
}

// LoadMore sends c the page of messages older than before, or the newest page
// when before is nil or zero.
func (h *Hub) LoadMore(ctx context.Context, c *Client, before *int64) error {
	if _, ok := h.authenticated(c); !ok {
		_ = h.send(c, rejected(ErrCodeNotAuthenticated, reasonLoginRequired))
		return ErrNotAuthenticated
	}

	msgs, hasMore, err := h.Page(ctx, before)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			_ = h.send(c, errorEvent(ErrCodeValidation, reasonBadCursor))
			return err
		}
		h.log.Error().Err(err).Str("client_id", c.ID).Msg("load older messages")
		_ = h.send(c, errorEvent(ErrCodePersistence, reasonLoadMoreFailed))
		return err
	}

	return h.send(c, &Event{
		Kind:     EventOlderMessages,
		Room:     h.room.Name,
		Messages: msgs,
		HasMore:  hasMore,
	})
}

// Page returns up to BatchSize messages with id < *before, newest first.
// hasMore is true when the page is full; the next call may still come back
// empty.
func (h *Hub) Page(ctx context.Context, before *int64) (msgs []Message, hasMore bool, err error) {
	var rows []*store.Message
	start := time.Now()
	switch {
	case before == nil || *before == 0:
		rows, err = h.messages.RecentMessages(ctx, h.batchSize)
		observe("recent", start)
	case *before < 0:
		return nil, false, fmt.Errorf("%w: cursor %d", ErrValidation, *before)
	default:
		rows, err = h.messages.MessagesBefore(ctx, *before, h.batchSize)
		observe("before", start)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return fromStored(rows, wrapMalformed, h.log), len(rows) >= h.batchSize, nil
}

// Disconnect closes c. If it was authenticated the nickname leaves the room
// once its last connection is gone. Disconnect is idempotent.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(c)
}

func (h *Hub) disconnectLocked(c *Client) {
	if c.state == StateClosed {
		return
	}
	wasAuthenticated := c.state == StateAuthenticated
	c.state = StateClosed

	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		metrics.ConnectionsActive.Dec()
	}

	if wasAuthenticated {
		h.room.RemoveClient(c)
		if h.presence.Remove(c.nick) {
			h.room.BroadcastToAll(&Event{Kind: EventUserLeft, Room: h.room.Name, User: c.nick})
			metrics.PresenceMembers.Set(float64(h.presence.Len()))
		}
		h.log.Info().Str("client_id", c.ID).Str("nick", c.nick).Msg("user left")
	}

	close(c.Events)
}

// Close disconnects every registered client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, c := range h.clients {
		h.disconnectLocked(c)
	}
}

// Presence returns a snapshot of the present nicknames.
func (h *Hub) Presence() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.Members()
}

// State returns the login state of c.
func (h *Hub) State(c *Client) SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.state
}

// Nick returns the nickname bound to c, or "" before login.
func (h *Hub) Nick(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.nick
}

func (h *Hub) authenticated(c *Client) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.nick, c.state == StateAuthenticated
}

// send queues an event for one client unless it already disconnected.
func (h *Hub) send(c *Client, event *Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	return h.room.SendTo(c, event)
}

// SendError reports a failed operation to c alone. The event is queued behind
// whatever c already has pending.
func (h *Hub) SendError(c *Client, code, msg string) error {
	return h.send(c, errorEvent(code, msg))
}

func rejected(code, reason string) *Event {
	return &Event{Kind: EventLoginRejected, Reason: reason, Error: coreError(code, reason)}
}

func errorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
