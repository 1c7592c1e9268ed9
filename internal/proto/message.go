package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeLogin    = "login"
	InboundTypeSend     = "send-message"
	InboundTypeTyping   = "typing"
	InboundTypeLoadMore = "load-more"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Outbound event names.
const (
	EventLoginRejected   = "login-rejected"
	EventSessionStarted  = "session-started"
	EventPreviousMessage = "previous-messages"
	EventMemberJoined    = "member-joined"
	EventMemberLeft      = "member-left"
	EventMessagePosted   = "message-posted"
	EventTypingStatus    = "typing-status"
	EventOlderMessages   = "older-messages"
	EventOperationFailed = "operation-failed"
)

// LoginData carries credentials.
type LoginData struct {
	Nick     string `json:"nick"`
	Password string `json:"password"`
}

// SendMessageData carries an opaque JSON payload, e.g. {"text": "hi"}.
type SendMessageData struct {
	Payload json.RawMessage `json:"payload"`
}

// TypingData toggles the typing indicator.
type TypingData struct {
	Status bool `json:"status"`
}

// LoadMoreData requests the page before LastID. A missing or zero LastID
// means the newest page.
type LoadMoreData struct {
	LastID *int64 `json:"lastId,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a resolved chat message.
type EventMessage struct {
	ID      int64           `json:"id"`
	Author  string          `json:"author"`
	Payload json.RawMessage `json:"payload"`
	TimeMs  int64           `json:"timeMs"`
}

// EventRejection explains a refused login or an action that requires one.
type EventRejection struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// EventSession is sent to a connection right after it logs in.
type EventSession struct {
	Room    string   `json:"room"`
	Nick    string   `json:"nick"`
	Members []string `json:"members"`
}

// EventHistory is the initial batch of recent messages, newest first.
type EventHistory struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// EventOlderPage is one page of load-more results, newest first.
type EventOlderPage struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
	HasMore  bool           `json:"hasMore"`
}

// EventMember notifies that a nickname joined or left the room.
type EventMember struct {
	Room string `json:"room"`
	Nick string `json:"nick"`
}

// EventTyping carries a typing indicator.
type EventTyping struct {
	Nick   string `json:"nick"`
	Status bool   `json:"status"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
