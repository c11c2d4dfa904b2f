package outbox

import (
	"encoding/json"
	"time"
)

// Source names the surface that produced an event, e.g. "admin" or "storefront".
type Source struct {
	Surface   string `json:"surface"`
	RequestID string `json:"requestId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     *Source         `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}
