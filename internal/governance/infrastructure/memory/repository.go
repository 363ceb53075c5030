package memory

import (
	"context"
	"sync"
	"time"

	governance "paystream-cloud/internal/governance/domain"
)

// Repository is an in-memory agent limits store for demo/testing.
type Repository struct {
	mu     sync.Mutex
	limits map[string]*governance.AgentLimits
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{limits: make(map[string]*governance.AgentLimits)}
}

// Upsert stores limits for an agent.
func (r *Repository) Upsert(ctx context.Context, limits *governance.AgentLimits) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *limits
	if existing, ok := r.limits[limits.AgentID]; ok {
		copy.ActiveStreams = existing.ActiveStreams
		copy.CommittedFlowPerMonth = existing.CommittedFlowPerMonth
	}
	copy.UpdatedAt = time.Now().UTC()
	r.limits[limits.AgentID] = &copy
	return nil
}

// Get fetches limits for an agent.
func (r *Repository) Get(ctx context.Context, agentID string) (*governance.AgentLimits, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	limits, ok := r.limits[agentID]
	if !ok {
		return nil, governance.ErrAgentNotFound
	}
	copy := *limits
	return &copy, nil
}

// ApplyStreamStats adjusts usage counters.
func (r *Repository) ApplyStreamStats(ctx context.Context, agentID string, deltaCount int, deltaFlow float64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	limits, ok := r.limits[agentID]
	if !ok {
		return governance.ErrAgentNotFound
	}
	limits.ActiveStreams += deltaCount
	if limits.ActiveStreams < 0 {
		limits.ActiveStreams = 0
	}
	limits.CommittedFlowPerMonth += deltaFlow
	if limits.CommittedFlowPerMonth < 0 {
		limits.CommittedFlowPerMonth = 0
	}
	limits.UpdatedAt = time.Now().UTC()
	return nil
}
