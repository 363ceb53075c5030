package interfaces

import (
	"context"
	"encoding/json"
	"errors"

	"paystream-cloud/internal/audit"
	streamsevents "paystream-cloud/internal/streams/application/events"
)

// StreamTransitionedConsumer writes an audit trail entry for every stream
// transition delivered on the platform bus.
type StreamTransitionedConsumer struct {
	auditLogger audit.Logger
}

// NewStreamTransitionedConsumer constructs a consumer.
func NewStreamTransitionedConsumer(auditLogger audit.Logger) (*StreamTransitionedConsumer, error) {
	if auditLogger == nil {
		return nil, errors.New("transition consumer: nil audit logger")
	}
	return &StreamTransitionedConsumer{auditLogger: auditLogger}, nil
}

// Consume handles one transition event.
func (c *StreamTransitionedConsumer) Consume(ctx context.Context, event streamsevents.StreamTransitioned) error {
	meta, _ := json.Marshal(map[string]any{
		"transition":     event.Transition,
		"total_streamed": event.TotalStreamed,
		"funded_amount":  event.FundedAmount,
	})
	return c.auditLogger.Log(ctx, audit.Entry{
		TenantID:     event.TenantID,
		Actor:        event.Actor,
		Action:       "stream.transitioned",
		ResourceType: "stream",
		ResourceID:   event.StreamID,
		StreamID:     event.StreamID,
		Metadata:     meta,
		CreatedAt:    event.OccurredAt,
	})
}
