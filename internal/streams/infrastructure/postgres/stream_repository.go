package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	streams "paystream-cloud/internal/streams/domain"
)

// StreamRepository persists stream rows in Postgres. Update is a conditional
// write guarded by the row's version column.
type StreamRepository struct {
	db *sql.DB
}

// NewStreamRepository constructs a stream repository.
func NewStreamRepository(db *sql.DB) *StreamRepository {
	return &StreamRepository{db: db}
}

const streamColumns = `id, tenant_id, sender_account_id, receiver_account_id, status,
flow_rate_per_second, flow_rate_per_month, funded_amount, buffer_amount,
total_streamed, total_withdrawn, total_paused_seconds,
started_at, paused_at, cancelled_at,
managed_by_agent_id, idempotency_key, version, created_at, updated_at`

// Create inserts a stream row.
func (r *StreamRepository) Create(ctx context.Context, stream *streams.Stream) error {
	if r == nil || r.db == nil {
		return errors.New("stream repository: nil db")
	}
	if stream == nil {
		return streams.ErrNilStream
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO streams (`+streamColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		stream.ID, stream.TenantID, stream.SenderAccountID, stream.ReceiverAccountID, stream.Status,
		stream.FlowRatePerSecond, stream.FlowRatePerMonth, stream.FundedAmount, stream.BufferAmount,
		stream.TotalStreamed, stream.TotalWithdrawn, stream.TotalPausedSeconds,
		stream.StartedAt, nullableTime(stream.PausedAt), nullableTime(stream.CancelledAt),
		nullableString(stream.ManagedByAgentID), nullableString(stream.IdempotencyKey),
		stream.Version, stream.CreatedAt, stream.UpdatedAt)
	return err
}

// Delete removes a stream row. Only the create path uses it, to roll back a
// row whose ledger hold could not be placed.
func (r *StreamRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("stream repository: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM streams WHERE id = $1`, id)
	return err
}

// Get fetches a stream by id.
func (r *StreamRepository) Get(ctx context.Context, id string) (*streams.Stream, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("stream repository: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+streamColumns+`
FROM streams
WHERE id = $1
LIMIT 1`, id)
	return scanStream(row)
}

// FindByIdempotencyKey looks up a stream by (tenant, idempotency key).
func (r *StreamRepository) FindByIdempotencyKey(ctx context.Context, tenantID, key string) (*streams.Stream, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("stream repository: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+streamColumns+`
FROM streams
WHERE tenant_id = $1 AND idempotency_key = $2
LIMIT 1`, tenantID, key)
	return scanStream(row)
}

// Update writes the stream row when its stored version still matches the
// version the caller read, then bumps the version. A stale version returns
// streams.ErrVersionConflict.
func (r *StreamRepository) Update(ctx context.Context, stream *streams.Stream) error {
	if r == nil || r.db == nil {
		return errors.New("stream repository: nil db")
	}
	if stream == nil {
		return streams.ErrNilStream
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE streams
SET status = $1,
	funded_amount = $2,
	total_streamed = $3,
	total_withdrawn = $4,
	total_paused_seconds = $5,
	started_at = $6,
	paused_at = $7,
	cancelled_at = $8,
	version = version + 1,
	updated_at = $9
WHERE id = $10 AND version = $11`,
		stream.Status, stream.FundedAmount,
		stream.TotalStreamed, stream.TotalWithdrawn, stream.TotalPausedSeconds,
		stream.StartedAt, nullableTime(stream.PausedAt), nullableTime(stream.CancelledAt),
		stream.UpdatedAt, stream.ID, stream.Version)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		if _, getErr := r.Get(ctx, stream.ID); errors.Is(getErr, streams.ErrStreamNotFound) {
			return streams.ErrStreamNotFound
		}
		return streams.ErrVersionConflict
	}
	stream.Version++
	return nil
}

// ListByTenant returns the tenant's streams, newest first.
func (r *StreamRepository) ListByTenant(ctx context.Context, tenantID string) ([]streams.Stream, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("stream repository: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+streamColumns+`
FROM streams
WHERE tenant_id = $1
ORDER BY created_at DESC, id DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []streams.Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *stream)
	}
	return result, rows.Err()
}

// ListActive returns every active stream across tenants; the runway
// checker and the reconcile tool scan them.
func (r *StreamRepository) ListActive(ctx context.Context) ([]streams.Stream, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("stream repository: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+streamColumns+`
FROM streams
WHERE status = $1
ORDER BY created_at ASC, id ASC`, streams.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []streams.Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *stream)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStream(row rowScanner) (*streams.Stream, error) {
	var stream streams.Stream
	var pausedAt, cancelledAt sql.NullTime
	var agentID, idempotencyKey sql.NullString
	if err := row.Scan(&stream.ID, &stream.TenantID, &stream.SenderAccountID, &stream.ReceiverAccountID,
		&stream.Status, &stream.FlowRatePerSecond, &stream.FlowRatePerMonth,
		&stream.FundedAmount, &stream.BufferAmount,
		&stream.TotalStreamed, &stream.TotalWithdrawn, &stream.TotalPausedSeconds,
		&stream.StartedAt, &pausedAt, &cancelledAt,
		&agentID, &idempotencyKey,
		&stream.Version, &stream.CreatedAt, &stream.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, streams.ErrStreamNotFound
		}
		return nil, err
	}
	if pausedAt.Valid {
		stream.PausedAt = pausedAt.Time.UTC()
	}
	if cancelledAt.Valid {
		stream.CancelledAt = cancelledAt.Time.UTC()
	}
	stream.ManagedByAgentID = agentID.String
	stream.IdempotencyKey = idempotencyKey.String
	stream.StartedAt = stream.StartedAt.UTC()
	stream.CreatedAt = stream.CreatedAt.UTC()
	stream.UpdatedAt = stream.UpdatedAt.UTC()
	return &stream, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
