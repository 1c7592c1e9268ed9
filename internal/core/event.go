package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventLoginRejected asks the client to (re)try logging in.
	EventLoginRejected EventKind = iota
	// EventSessionStarted confirms login and carries the presence snapshot.
	EventSessionStarted
	// EventHistory delivers the most recent messages right after login.
	EventHistory
	// EventUserJoined notifies the room that a nickname came online.
	EventUserJoined
	// EventUserLeft notifies the room that a nickname went offline.
	EventUserLeft
	// EventRoomMessage delivers a persisted chat message.
	EventRoomMessage
	// EventTyping notifies the other members about a typing indicator.
	EventTyping
	// EventOlderMessages answers a load-more request.
	EventOlderMessages
	// EventError reports a failed operation to the acting client.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	User     string
	Users    []string   // EventSessionStarted
	Message  Message    // EventRoomMessage
	Messages []Message  // EventHistory, EventOlderMessages
	HasMore  bool       // EventOlderMessages
	Typing   bool       // EventTyping
	Reason   string     // EventLoginRejected
	Error    *CoreError // EventError, EventLoginRejected
}
