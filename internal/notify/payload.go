package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the wire format posted to webhook subscriber endpoints.
type Payload struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Context   map[string]any `json:"context,omitempty"`
}

// BuildPayload serializes one event for delivery. The same bytes are stored
// on every delivery row for that event and signed per-webhook at send time.
func BuildPayload(eventID uuid.UUID, eventType string, data, context map[string]any, ts time.Time) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(Payload{
		EventID:   eventID.String(),
		EventType: eventType,
		Timestamp: ts.UTC().Format(time.RFC3339),
		Data:      data,
		Context:   context,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return body, nil
}
