package postgres

import (
	"context"
	"database/sql"
	"errors"

	streams "paystream-cloud/internal/streams/domain"
)

// EventRepository stores lifecycle transition events, append-only.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository constructs an event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts one transition event.
func (r *EventRepository) Append(ctx context.Context, event streams.StreamEvent) error {
	if r == nil || r.db == nil {
		return errors.New("event repository: nil db")
	}
	var data any
	if len(event.Data) > 0 {
		data = []byte(event.Data)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO stream_events (id, stream_id, tenant_id, event_type, actor, data, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.StreamID, event.TenantID, event.Type, event.Actor, data, event.CreatedAt)
	return err
}

// ListByStream returns a stream's events oldest first.
func (r *EventRepository) ListByStream(ctx context.Context, streamID string) ([]streams.StreamEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repository: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, stream_id, tenant_id, event_type, actor, data, created_at
FROM stream_events
WHERE stream_id = $1
ORDER BY created_at ASC, id ASC`, streamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []streams.StreamEvent
	for rows.Next() {
		var event streams.StreamEvent
		var data []byte
		if err := rows.Scan(&event.ID, &event.StreamID, &event.TenantID, &event.Type,
			&event.Actor, &data, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			event.Data = append([]byte(nil), data...)
		}
		event.CreatedAt = event.CreatedAt.UTC()
		result = append(result, event)
	}
	return result, rows.Err()
}
