package streams

import (
	"math"
	"time"
)

// BalanceState is a live snapshot of a stream's accrued balance.
type BalanceState struct {
	Total         float64 `json:"total_streamed"`
	Withdrawn     float64 `json:"total_withdrawn"`
	Available     float64 `json:"available"`
	RunwaySeconds int64   `json:"runway_seconds"`
	Health        string  `json:"health"`
}

// ComputeState reconstructs the stream's balance at the given instant from
// its last checkpoint. Paused and cancelled streams keep their frozen
// checkpoint; active streams accrue over elapsed wall-clock time minus
// cumulative paused time, capped at the funded amount. Pure: no mutation,
// no I/O.
func ComputeState(stream *Stream, now time.Time) BalanceState {
	total := stream.TotalStreamed
	if stream.Status == StatusActive {
		elapsed := int64(now.Sub(stream.StartedAt) / time.Second)
		activeSeconds := elapsed - stream.TotalPausedSeconds
		if activeSeconds < 0 {
			activeSeconds = 0
		}
		accrued := stream.FlowRatePerSecond * float64(activeSeconds)
		total = math.Min(accrued, stream.FundedAmount)
	}

	runway := FloorSeconds(stream.FundedAmount-total, stream.FlowRatePerSecond)
	return BalanceState{
		Total:         total,
		Withdrawn:     stream.TotalWithdrawn,
		Available:     total - stream.TotalWithdrawn,
		RunwaySeconds: runway,
		Health:        HealthForRunway(runway),
	}
}

// FloorSeconds divides an amount by a per-second rate and floors the result.
// Quotients within rounding distance of an integer snap to it, so exact
// funding multiples do not lose a second to binary float drift.
func FloorSeconds(amount, ratePerSecond float64) int64 {
	quotient := amount / ratePerSecond
	rounded := math.Round(quotient)
	if math.Abs(quotient-rounded) < 1e-6 {
		return int64(rounded)
	}
	return int64(math.Floor(quotient))
}
