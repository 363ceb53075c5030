package application

import (
	"context"
	"errors"

	governance "paystream-cloud/internal/governance/domain"
)

// Repository stores agent limits.
type Repository interface {
	Get(ctx context.Context, agentID string) (*governance.AgentLimits, error)
	Upsert(ctx context.Context, limits *governance.AgentLimits) error
	ApplyStreamStats(ctx context.Context, agentID string, deltaCount int, deltaFlow float64) error
}

// Service enforces agent spending limits on stream creation.
type Service struct {
	repo Repository
}

// NewService constructs a governance service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("governance: nil repo")
	}
	return &Service{repo: repo}, nil
}

// GetLimits fetches the agent's limits row.
func (s *Service) GetLimits(ctx context.Context, agentID string) (*governance.AgentLimits, error) {
	return s.repo.Get(ctx, agentID)
}

// SetLimits writes the agent's configured ceilings, preserving usage
// counters for existing agents.
func (s *Service) SetLimits(ctx context.Context, limits *governance.AgentLimits) error {
	if limits == nil || limits.AgentID == "" {
		return errors.New("governance: agent id is required")
	}
	if limits.MaxFlowPerMonth < 0 || limits.MaxActiveStreams < 0 {
		return errors.New("governance: limits must not be negative")
	}
	return s.repo.Upsert(ctx, limits)
}

// CheckStreamLimit decides whether the agent may open a stream at the given
// monthly flow rate. Agents without a limits row are ungoverned.
func (s *Service) CheckStreamLimit(ctx context.Context, agentID string, flowRatePerMonth float64) (governance.Decision, error) {
	limits, err := s.repo.Get(ctx, agentID)
	if errors.Is(err, governance.ErrAgentNotFound) {
		return governance.Decision{Allowed: true}, nil
	}
	if err != nil {
		return governance.Decision{}, err
	}
	return limits.CheckStream(flowRatePerMonth), nil
}

// UpdateAgentStreamStats adjusts the agent's active-stream count and
// committed monthly flow. No-op for ungoverned agents.
func (s *Service) UpdateAgentStreamStats(ctx context.Context, agentID string, deltaCount int, deltaFlow float64) error {
	err := s.repo.ApplyStreamStats(ctx, agentID, deltaCount, deltaFlow)
	if errors.Is(err, governance.ErrAgentNotFound) {
		return nil
	}
	return err
}
