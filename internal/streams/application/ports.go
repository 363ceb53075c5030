package application

import (
	"context"
	"time"

	governance "paystream-cloud/internal/governance/domain"
	streams "paystream-cloud/internal/streams/domain"
)

// StreamRepository persists stream rows. Update is a conditional write
// guarded by the stream's version and must return streams.ErrVersionConflict
// when the guard fails.
type StreamRepository interface {
	Create(ctx context.Context, stream *streams.Stream) error
	// Delete removes a stream row. Used only as the compensating rollback
	// when the initial ledger hold fails.
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*streams.Stream, error)
	FindByIdempotencyKey(ctx context.Context, tenantID, key string) (*streams.Stream, error)
	Update(ctx context.Context, stream *streams.Stream) error
	ListByTenant(ctx context.Context, tenantID string) ([]streams.Stream, error)
}

// EventRecorder appends lifecycle transition events.
type EventRecorder interface {
	Append(ctx context.Context, event streams.StreamEvent) error
	ListByStream(ctx context.Context, streamID string) ([]streams.StreamEvent, error)
}

// BalanceLedger is the external ledger contract. Balances move only through
// these primitives, never directly.
type BalanceLedger interface {
	AvailableBalance(ctx context.Context, accountID string) (float64, error)
	HoldForStream(ctx context.Context, accountID, streamID string, amount, buffer float64) error
	ReleaseFromStream(ctx context.Context, accountID, streamID string, accruedTotal, buffer float64) (float64, error)
	Credit(ctx context.Context, accountID string, amount float64, referenceType, referenceID string) error
}

// SpendingLimitGovernor gates stream creation for governed agents.
type SpendingLimitGovernor interface {
	CheckStreamLimit(ctx context.Context, agentID string, flowRatePerMonth float64) (governance.Decision, error)
	UpdateAgentStreamStats(ctx context.Context, agentID string, deltaCount int, deltaFlow float64) error
}

// AccountDirectory verifies account tenant ownership.
type AccountDirectory interface {
	EnsureAccountTenant(ctx context.Context, tenantID, accountID string) error
}

// EventPublisher forwards transition events to the platform bus.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}
