package governance

import (
	"errors"
	"time"
)

// ErrAgentNotFound indicates no limits row exists for the agent.
var ErrAgentNotFound = errors.New("governance: agent not found")

// AgentLimits governs how much continuous flow an agent may commit.
type AgentLimits struct {
	AgentID  string
	TenantID string

	MaxFlowPerMonth  float64
	MaxActiveStreams int

	CommittedFlowPerMonth float64
	ActiveStreams         int

	UpdatedAt time.Time
}

// Decision is the outcome of a spending-limit check.
type Decision struct {
	Allowed bool
	Reason  string
}

// CheckStream decides whether the agent may open a stream at the given
// monthly flow rate against its remaining headroom.
func (l *AgentLimits) CheckStream(flowRatePerMonth float64) Decision {
	if l.MaxActiveStreams > 0 && l.ActiveStreams >= l.MaxActiveStreams {
		return Decision{Reason: "active stream limit reached"}
	}
	if l.MaxFlowPerMonth > 0 && l.CommittedFlowPerMonth+flowRatePerMonth > l.MaxFlowPerMonth {
		return Decision{Reason: "monthly flow limit exceeded"}
	}
	return Decision{Allowed: true}
}
