package application

import (
	"time"

	streams "paystream-cloud/internal/streams/domain"
)

// Actor identifies who initiates an operation. AgentID is set when the
// caller is a governed agent.
type Actor struct {
	Subject string
	AgentID string
}

// CreateRequest opens a new payment stream.
type CreateRequest struct {
	TenantID          string   `json:"tenant_id"`
	SenderAccountID   string   `json:"sender_account_id"`
	ReceiverAccountID string   `json:"receiver_account_id"`
	FlowRatePerMonth  float64  `json:"flow_rate_per_month"`
	FundingAmount     *float64 `json:"funding_amount,omitempty"`
	IdempotencyKey    string   `json:"idempotency_key,omitempty"`
}

// TopUpRequest adds funding to a stream.
type TopUpRequest struct {
	Amount float64 `json:"amount"`
}

// WithdrawRequest withdraws accrued funds; a nil amount withdraws
// everything available.
type WithdrawRequest struct {
	Amount *float64 `json:"amount,omitempty"`
}

// StreamView is the snapshot returned by every operation: persisted fields
// plus the live-computed balance state.
type StreamView struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenant_id"`
	SenderAccountID    string     `json:"sender_account_id"`
	ReceiverAccountID  string     `json:"receiver_account_id"`
	Status             string     `json:"status"`
	FlowRatePerMonth   float64    `json:"flow_rate_per_month"`
	FlowRatePerSecond  float64    `json:"flow_rate_per_second"`
	FundedAmount       float64    `json:"funded_amount"`
	BufferAmount       float64    `json:"buffer_amount"`
	TotalStreamed      float64    `json:"total_streamed"`
	TotalWithdrawn     float64    `json:"total_withdrawn"`
	Available          float64    `json:"available"`
	TotalPausedSeconds int64      `json:"total_paused_seconds"`
	RunwaySeconds      int64      `json:"runway_seconds"`
	Health             string     `json:"health"`
	ManagedByAgentID   string     `json:"managed_by_agent_id,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func buildView(stream *streams.Stream, state streams.BalanceState) *StreamView {
	view := &StreamView{
		ID:                 stream.ID,
		TenantID:           stream.TenantID,
		SenderAccountID:    stream.SenderAccountID,
		ReceiverAccountID:  stream.ReceiverAccountID,
		Status:             stream.Status,
		FlowRatePerMonth:   stream.FlowRatePerMonth,
		FlowRatePerSecond:  stream.FlowRatePerSecond,
		FundedAmount:       stream.FundedAmount,
		BufferAmount:       stream.BufferAmount,
		TotalStreamed:      state.Total,
		TotalWithdrawn:     state.Withdrawn,
		Available:          state.Available,
		TotalPausedSeconds: stream.TotalPausedSeconds,
		RunwaySeconds:      state.RunwaySeconds,
		Health:             state.Health,
		ManagedByAgentID:   stream.ManagedByAgentID,
		StartedAt:          stream.StartedAt,
		CreatedAt:          stream.CreatedAt,
		UpdatedAt:          stream.UpdatedAt,
	}
	if !stream.PausedAt.IsZero() {
		pausedAt := stream.PausedAt
		view.PausedAt = &pausedAt
	}
	if !stream.CancelledAt.IsZero() {
		cancelledAt := stream.CancelledAt
		view.CancelledAt = &cancelledAt
	}
	return view
}
