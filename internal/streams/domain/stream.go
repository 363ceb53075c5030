package streams

import "time"

const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
)

// Stream represents a continuous rate-based money transfer between two
// ledger accounts. Funds accrue to the receiver at FlowRatePerSecond while
// the stream is active; paused time is excluded from accrual.
type Stream struct {
	ID                string
	TenantID          string
	SenderAccountID   string
	ReceiverAccountID string
	Status            string

	// FlowRatePerSecond and BufferAmount are fixed at creation.
	FlowRatePerSecond float64
	FlowRatePerMonth  float64
	FundedAmount      float64
	BufferAmount      float64

	// Checkpoint values, frozen at the last non-accruing transition.
	TotalStreamed      float64
	TotalWithdrawn     float64
	TotalPausedSeconds int64

	StartedAt   time.Time
	PausedAt    time.Time
	CancelledAt time.Time

	// ManagedByAgentID is set when the stream was created by a governed
	// agent; only that agent may pause it.
	ManagedByAgentID string
	IdempotencyKey   string

	// Version guards conditional updates on the stream row.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the stream is currently accruing.
func (s *Stream) IsActive() bool { return s != nil && s.Status == StatusActive }

// IsTerminal reports whether the stream reached its terminal status.
func (s *Stream) IsTerminal() bool { return s != nil && s.Status == StatusCancelled }

// Clone returns a detached copy of the stream.
func (s *Stream) Clone() *Stream {
	if s == nil {
		return nil
	}
	copy := *s
	return &copy
}
