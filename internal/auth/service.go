package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/roomchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service is the credential store: it creates accounts and verifies
// username/password pairs against their bcrypt hashes.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new account with a hashed password.
func (s *Service) Register(ctx context.Context, username, password string, viewHistory bool) (*store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 255 {
		return nil, ErrInvalidUsername
	}
	if strings.TrimSpace(password) == "" {
		return nil, ErrInvalidPassword
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword, viewHistory)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Verify checks a username/password pair. An unknown user and a wrong password
// both return ok=false with a nil error; err is reserved for store failures.
func (s *Service) Verify(ctx context.Context, username, password string) (ok, viewHistory bool, err error) {
	user, err := s.lookup(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, user.ViewHistory, nil
}

// Login validates credentials and returns a JWT token for the REST API.
// Blank input is rejected with ErrInvalidUsername or ErrInvalidPassword before
// any lookup.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidUsername
	}
	if strings.TrimSpace(password) == "" {
		return "", ErrInvalidPassword
	}
	user, err := s.lookup(ctx, username, password)
	if err != nil {
		return "", err
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// SetViewHistory changes whether the user receives recent history on login.
func (s *Service) SetViewHistory(ctx context.Context, username string, viewHistory bool) error {
	if err := s.store.SetViewHistory(ctx, username, viewHistory); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidUsername
		}
		return err
	}
	return nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func (s *Service) lookup(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = ComparePassword(string(dummyHash), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
