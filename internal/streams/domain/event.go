package streams

import (
	"encoding/json"
	"time"
)

const (
	EventCreated   = "created"
	EventPaused    = "paused"
	EventResumed   = "resumed"
	EventToppedUp  = "topped_up"
	EventWithdrawn = "withdrawn"
	EventCancelled = "cancelled"
)

// StreamEvent is one append-only record per lifecycle transition. Events are
// written by the lifecycle controller and never mutated.
type StreamEvent struct {
	ID        string          `json:"id"`
	StreamID  string          `json:"stream_id"`
	TenantID  string          `json:"tenant_id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
