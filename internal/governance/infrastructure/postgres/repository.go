package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	governance "paystream-cloud/internal/governance/domain"
)

// Repository is a Postgres implementation for agent limits.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get fetches limits for an agent.
func (r *Repository) Get(ctx context.Context, agentID string) (*governance.AgentLimits, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("governance repo: nil db")
	}
	if agentID == "" {
		return nil, governance.ErrAgentNotFound
	}
	row := r.db.QueryRowContext(ctx, `
SELECT agent_id, tenant_id, max_flow_per_month, max_active_streams,
	committed_flow_per_month, active_streams, updated_at
FROM agent_limits
WHERE agent_id = $1
LIMIT 1`, agentID)

	var limits governance.AgentLimits
	if err := row.Scan(&limits.AgentID, &limits.TenantID, &limits.MaxFlowPerMonth,
		&limits.MaxActiveStreams, &limits.CommittedFlowPerMonth, &limits.ActiveStreams,
		&limits.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, governance.ErrAgentNotFound
		}
		return nil, err
	}
	limits.UpdatedAt = limits.UpdatedAt.UTC()
	return &limits, nil
}

// Upsert writes an agent limits row.
func (r *Repository) Upsert(ctx context.Context, limits *governance.AgentLimits) error {
	if r == nil || r.db == nil {
		return errors.New("governance repo: nil db")
	}
	if limits == nil {
		return errors.New("governance repo: nil limits")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO agent_limits (agent_id, tenant_id, max_flow_per_month, max_active_streams,
	committed_flow_per_month, active_streams, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (agent_id)
DO UPDATE SET max_flow_per_month = EXCLUDED.max_flow_per_month,
	max_active_streams = EXCLUDED.max_active_streams,
	updated_at = EXCLUDED.updated_at`,
		limits.AgentID, limits.TenantID, limits.MaxFlowPerMonth, limits.MaxActiveStreams,
		limits.CommittedFlowPerMonth, limits.ActiveStreams, time.Now().UTC())
	return err
}

// ApplyStreamStats atomically adjusts usage counters. Committed flow is
// clamped at zero so cancel after a limits reset cannot go negative.
func (r *Repository) ApplyStreamStats(ctx context.Context, agentID string, deltaCount int, deltaFlow float64) error {
	if r == nil || r.db == nil {
		return errors.New("governance repo: nil db")
	}
	if agentID == "" {
		return governance.ErrAgentNotFound
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE agent_limits
SET active_streams = GREATEST(active_streams + $1, 0),
	committed_flow_per_month = GREATEST(committed_flow_per_month + $2, 0),
	updated_at = $3
WHERE agent_id = $4`, deltaCount, deltaFlow, time.Now().UTC(), agentID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return governance.ErrAgentNotFound
	}
	return nil
}
