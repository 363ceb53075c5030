package events

import "time"

// StreamTransitioned is published after each lifecycle transition commits.
type StreamTransitioned struct {
	EventID       string    `json:"event_id"`
	StreamID      string    `json:"stream_id"`
	TenantID      string    `json:"tenant_id"`
	Transition    string    `json:"transition"`
	Actor         string    `json:"actor"`
	TotalStreamed float64   `json:"total_streamed"`
	FundedAmount  float64   `json:"funded_amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}
