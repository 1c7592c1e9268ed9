package core

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/metrics"
)

// DefaultRoom is the name of the single shared room.
const DefaultRoom = "main"

// Room groups the authenticated clients that receive broadcasts.
// Room is not safe for concurrent use; the Hub guards it.
type Room struct {
	Name    string
	clients map[*Client]struct{}
	log     *zerolog.Logger
}

// NewRoom constructs a room with no clients.
func NewRoom(name string, logger *zerolog.Logger) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
		log:     logger,
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// BroadcastToAll sends an event to every client in the room.
func (r *Room) BroadcastToAll(event *Event) {
	for client := range r.clients {
		_ = r.SendTo(client, event)
	}
}

// BroadcastToOthers sends an event to every client in the room except sender.
func (r *Room) BroadcastToOthers(sender *Client, event *Event) {
	for client := range r.clients {
		if client == sender {
			continue
		}
		_ = r.SendTo(client, event)
	}
}

// SendTo queues an event for a single client without blocking. A full queue
// means the peer is not reading; the event is dropped for that client only.
func (r *Room) SendTo(c *Client, event *Event) error {
	select {
	case c.Events <- event:
		return nil
	default:
		metrics.DeliveryDropped.Inc()
		r.log.Warn().Str("client_id", c.ID).Str("nick", c.nick).Int("kind", int(event.Kind)).Msg("event queue full, dropping event")
		return ErrDelivery
	}
}

// Len returns the number of clients in the room.
func (r *Room) Len() int {
	return len(r.clients)
}
