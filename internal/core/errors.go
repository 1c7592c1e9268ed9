package core

import "errors"

// Error codes sent to clients in operation-failed events.
const (
	ErrCodeValidation           = "validation_error"
	ErrCodeInvalidCredentials   = "invalid_credentials"
	ErrCodeNotAuthenticated     = "not_authenticated"
	ErrCodeAlreadyAuthenticated = "already_authenticated"
	ErrCodePersistence          = "persistence_error"
	ErrCodeRateLimited          = "rate_limited"
	ErrCodeBadRequest           = "bad_request"
)

var (
	// ErrValidation reports malformed or empty input.
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication reports bad credentials without saying which part was wrong.
	ErrAuthentication = errors.New("invalid credentials")
	// ErrNotAuthenticated reports an action attempted before login.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAlreadyAuthenticated reports a second login on the same connection.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrPersistence reports a store failure while serving one connection.
	ErrPersistence = errors.New("persistence failure")
	// ErrRateLimited reports that the sender exceeded the message rate.
	ErrRateLimited = errors.New("rate limited")
	// ErrDelivery reports that an event could not be queued for one connection.
	ErrDelivery = errors.New("delivery failed")
	// ErrClosed reports an operation on a connection that already disconnected.
	ErrClosed = errors.New("connection closed")
)

// Client-visible reasons. Both credential failures share one text.
const (
	reasonMissingFields   = "Both username and password are required."
	reasonBadCredentials  = "Invalid credentials."
	reasonAuthServerError = "Server error during authentication."
	reasonLoginToSend     = "You need to be logged in to send message."
	reasonLoginRequired   = "You need to be logged in."
	reasonAlreadyLoggedIn = "Already logged in."
	reasonEmptyPayload    = "Message payload is required."
	reasonSendFailed      = "Failed to send message."
	reasonRateLimited     = "Too many messages, slow down."
	reasonBadCursor       = "Invalid cursor."
	reasonLoadMoreFailed  = "Failed to load older messages."
	reasonHistoryFailed   = "Failed to load message history."
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
