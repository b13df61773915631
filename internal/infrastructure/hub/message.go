package hub

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventName is the event name every pushed message carries on the wire.
const EventName = "sse"

var (
	ErrEmptyEventID = errors.New("event id cannot be empty")
	ErrNilEvent     = errors.New("event cannot be nil")
)

// HandshakePayload is sent first on every new connection so proxies flush
// the stream and the client gets an initial Last-Event-ID.
type HandshakePayload struct {
	Message string `json:"message"`
}

func NewHandshake(id, userKey string) *Event {
	return NewEvent(id, HandshakePayload{
		Message: fmt.Sprintf("EventStream Created. [userKey=%s]", userKey),
	})
}

func NewEvent(id string, data any) *Event {
	return &Event{
		ID:   id,
		Name: EventName,
		Data: data,
	}
}

// ValidateEvent rejects events that cannot be written to a stream.
func ValidateEvent(event *Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if event.ID == "" {
		return ErrEmptyEventID
	}
	if event.Data != nil {
		if _, err := json.Marshal(event.Data); err != nil {
			return fmt.Errorf("event data must be JSON serializable: %w", err)
		}
	}
	return nil
}
