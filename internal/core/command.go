package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandLogin authenticates the connection and joins the room.
	CommandLogin CommandKind = iota
	// CommandSendMessage persists and broadcasts a chat message.
	CommandSendMessage
	// CommandTyping broadcasts a typing indicator to the other members.
	CommandTyping
	// CommandLoadMore requests a page of older messages.
	CommandLoadMore
)

func (k CommandKind) String() string {
	switch k {
	case CommandLogin:
		return "login"
	case CommandSendMessage:
		return "send-message"
	case CommandTyping:
		return "typing"
	case CommandLoadMore:
		return "load-more"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client. Only the fields that
// belong to Kind are read.
type Command struct {
	Kind CommandKind

	// CommandLogin
	Nick     string
	Password string

	// CommandSendMessage
	Payload json.RawMessage

	// CommandTyping
	Typing bool

	// CommandLoadMore; nil means "start from the newest message".
	Before *int64
}
