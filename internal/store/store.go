package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// User is an account allowed to join the room.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	ViewHistory  bool
	CreatedAt    time.Time
}

// Message is a persisted chat message. Body holds the serialized payload exactly
// as it was written; the store never interprets it.
type Message struct {
	ID     int64
	Author string
	Body   string
	SentAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new account. Returns ErrConflict if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string, viewHistory bool) (*User, error)

	// GetUserByUsername retrieves an account. Returns ErrNotFound if it does not exist.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetViewHistory updates the history preference of an account.
	SetViewHistory(ctx context.Context, username string, viewHistory bool) error
}

// MessageStore is an append-only message log.
// Identifiers are strictly increasing in insertion order and the timestamp is
// always assigned by the store.
type MessageStore interface {
	// AppendMessage persists a message and returns it with ID and SentAt populated.
	AppendMessage(ctx context.Context, author, body string) (*Message, error)

	// RecentMessages returns the newest limit messages, newest first.
	RecentMessages(ctx context.Context, limit int) ([]*Message, error)

	// MessagesBefore returns up to limit messages with ID < beforeID, newest first.
	MessagesBefore(ctx context.Context, beforeID int64, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

// EpochSeconds converts a fractional unix timestamp, as kept in the sent_at
// column, into a time.Time with microsecond precision.
func EpochSeconds(sec float64) time.Time {
	return time.UnixMicro(int64(sec * 1e6)).UTC()
}
