package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/migrations"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and brings its schema up to date.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps :memory: databases shared and serializes
	// inserts, which is what gives message ids their global order.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded sqlite migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new account.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string, viewHistory bool) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, view_history)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash, viewHistory); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("insert user %q: %w", username, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves an account by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, view_history, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.ViewHistory,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// SetViewHistory updates the history preference of an account.
func (s *SQLiteStore) SetViewHistory(ctx context.Context, username string, viewHistory bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET view_history = ? WHERE username = ?`, viewHistory, username)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return nil
}

// ==== MessageStore implementation ====

// AppendMessage persists a message. The id comes from AUTOINCREMENT and the
// timestamp from the column default, so neither is ever caller supplied.
func (s *SQLiteStore) AppendMessage(ctx context.Context, author, body string) (*store.Message, error) {
	query := `
		INSERT INTO messages (username, message)
		VALUES (?, ?)
		RETURNING id, sent_at
	`
	msg := store.Message{Author: author, Body: body}
	var sentAt float64
	if err := s.db.QueryRowContext(ctx, query, author, body).Scan(&msg.ID, &sentAt); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msg.SentAt = store.EpochSeconds(sentAt)

	return &msg, nil
}

// RecentMessages returns the newest limit messages, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, username, message, sent_at
		FROM messages
		ORDER BY id DESC
		LIMIT ?
	`
	return s.listMessages(ctx, query, limit)
}

// MessagesBefore returns up to limit messages older than beforeID, newest first.
func (s *SQLiteStore) MessagesBefore(ctx context.Context, beforeID int64, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, username, message, sent_at
		FROM messages
		WHERE id < ?
		ORDER BY id DESC
		LIMIT ?
	`
	return s.listMessages(ctx, query, beforeID, limit)
}

func (s *SQLiteStore) listMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var sentAt float64
		if err := rows.Scan(&msg.ID, &msg.Author, &msg.Body, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.SentAt = store.EpochSeconds(sentAt)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}
