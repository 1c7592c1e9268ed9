package core

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Message is the delivery record for a chat message.
type Message struct {
	ID        int64
	From      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// TimeMillis is the server timestamp in milliseconds since the epoch.
func (m Message) TimeMillis() int64 {
	return m.CreatedAt.UnixMilli()
}

// payloadPolicy decides what happens to a stored row whose body is not JSON.
type payloadPolicy int

const (
	// dropMalformed omits the row (login history).
	dropMalformed payloadPolicy = iota
	// wrapMalformed keeps the row with {"text": <raw body>} (load-more).
	wrapMalformed
)

type fallbackPayload struct {
	Text string `json:"text"`
}

func fromStored(rows []*store.Message, policy payloadPolicy, log *zerolog.Logger) []Message {
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		payload := json.RawMessage(row.Body)
		if !json.Valid(payload) {
			if policy == dropMalformed {
				log.Warn().Int64("msg_id", row.ID).Msg("dropping message with malformed payload")
				continue
			}
			log.Warn().Int64("msg_id", row.ID).Msg("wrapping malformed payload as raw text")
			wrapped, err := json.Marshal(fallbackPayload{Text: row.Body})
			if err != nil {
				continue
			}
			payload = wrapped
		}
		out = append(out, Message{
			ID:        row.ID,
			From:      row.Author,
			Payload:   payload,
			CreatedAt: row.SentAt,
		})
	}
	return out
}
