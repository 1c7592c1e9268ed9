// Package postgres implements store.Store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/migrations"
)

const uniqueViolation = pq.ErrorCode("23505")

// PostgresStore implements store.Store for PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// New connects using a lib/pq connection string and applies migrations.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies the embedded postgres migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CreateUser creates a new account.
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string, viewHistory bool) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, view_history)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, view_history, created_at
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username, passwordHash, viewHistory).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.ViewHistory, &user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("insert user %q: %w", username, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves an account by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, view_history, created_at
		FROM users
		WHERE username = $1
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.ViewHistory, &user.CreatedAt,
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
func (s *PostgresStore) SetViewHistory(ctx context.Context, username string, viewHistory bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET view_history = $1 WHERE username = $2`, viewHistory, username)
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

// AppendMessage persists a message; BIGSERIAL assigns the id and the column
// default assigns sent_at.
func (s *PostgresStore) AppendMessage(ctx context.Context, author, body string) (*store.Message, error) {
	query := `
		INSERT INTO messages (username, message)
		VALUES ($1, $2)
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
func (s *PostgresStore) RecentMessages(ctx context.Context, limit int) ([]*store.Message, error) {
	return s.listMessages(ctx, `
		SELECT id, username, message, sent_at
		FROM messages
		ORDER BY id DESC
		LIMIT $1
	`, limit)
}

// MessagesBefore returns up to limit messages older than beforeID, newest first.
func (s *PostgresStore) MessagesBefore(ctx context.Context, beforeID int64, limit int) ([]*store.Message, error) {
	return s.listMessages(ctx, `
		SELECT id, username, message, sent_at
		FROM messages
		WHERE id < $1
		ORDER BY id DESC
		LIMIT $2
	`, beforeID, limit)
}

func (s *PostgresStore) listMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
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
