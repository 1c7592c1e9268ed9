package core

// SessionState is the per-connection login state.
// Transitions only go forward: Anonymous -> Authenticated -> Closed, or
// Anonymous -> Closed.
type SessionState int

const (
	StateAnonymous SessionState = iota
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const clientEventBuffer = 64

// Client is one live connection as seen by the core layer.
// Nick and state are owned by the Hub and only change under its lock.
type Client struct {
	ID     string
	Events chan *Event

	nick  string
	state SessionState
}

// NewClient constructs an anonymous client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, clientEventBuffer),
	}
}
