package memory

import (
	"context"
	"sync"

	streams "paystream-cloud/internal/streams/domain"
)

// EventRecorder keeps lifecycle events in memory, append-only.
type EventRecorder struct {
	mu       sync.Mutex
	byStream map[string][]streams.StreamEvent
}

// NewEventRecorder constructs an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{byStream: make(map[string][]streams.StreamEvent)}
}

// Append records one transition event.
func (r *EventRecorder) Append(_ context.Context, event streams.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byStream[event.StreamID] = append(r.byStream[event.StreamID], event)
	return nil
}

// ListByStream returns a stream's events oldest first.
func (r *EventRecorder) ListByStream(_ context.Context, streamID string) ([]streams.StreamEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.byStream[streamID]
	result := make([]streams.StreamEvent, len(events))
	copy(result, events)
	return result, nil
}
