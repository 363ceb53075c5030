package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"paystream-cloud/internal/auth"
	"paystream-cloud/internal/eventing"
	ledger "paystream-cloud/internal/ledger/domain"
	"paystream-cloud/internal/observability/metrics"
	streamsevents "paystream-cloud/internal/streams/application/events"
	streams "paystream-cloud/internal/streams/domain"
)

// Service is the stream lifecycle controller. It holds no in-memory state
// between requests: every operation re-derives the live balance from the
// persisted row plus wall-clock time, validates against it, persists the
// new checkpoint through a version-guarded update, and only then touches
// the balance ledger.
type Service struct {
	repo      StreamRepository
	events    EventRecorder
	ledger    BalanceLedger
	governor  SpendingLimitGovernor
	accounts  AccountDirectory
	publisher EventPublisher
	clock     Clock
}

// NewService constructs the lifecycle controller. Governor, accounts and
// publisher are optional.
func NewService(repo StreamRepository, events EventRecorder, balances BalanceLedger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("streams: nil repo")
	}
	if events == nil {
		return nil, errors.New("streams: nil event recorder")
	}
	if balances == nil {
		return nil, errors.New("streams: nil balance ledger")
	}
	service := &Service{
		repo:   repo,
		events: events,
		ledger: balances,
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Option configures the service.
type Option func(*Service)

// WithGovernor enables agent spending-limit checks.
func WithGovernor(governor SpendingLimitGovernor) Option {
	return func(s *Service) { s.governor = governor }
}

// WithAccountDirectory enables account tenant-ownership checks.
func WithAccountDirectory(accounts AccountDirectory) Option {
	return func(s *Service) { s.accounts = accounts }
}

// WithPublisher enables transition events on the platform bus.
func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Create opens a stream and holds its funding plus buffer on the sender.
// A repeated idempotency key for the same tenant returns the original
// stream with no new side effects.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor Actor) (*StreamView, error) {
	tenantID, err := s.resolveTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, tenantID, req.IdempotencyKey)
		if err != nil && !errors.Is(err, streams.ErrStreamNotFound) {
			return nil, err
		}
		if existing != nil {
			return buildView(existing, streams.ComputeState(existing, s.clock.Now().UTC())), nil
		}
	}

	if req.SenderAccountID == "" || req.ReceiverAccountID == "" {
		return nil, streams.NewValidationError("account", "sender and receiver are required")
	}
	if req.SenderAccountID == req.ReceiverAccountID {
		return nil, streams.NewValidationError("account", "sender and receiver must differ")
	}
	if req.FlowRatePerMonth <= 0 {
		return nil, streams.NewValidationError("flow_rate_per_month", "must be positive")
	}
	if err := s.ensureAccounts(ctx, tenantID, req.SenderAccountID, req.ReceiverAccountID); err != nil {
		return nil, err
	}

	rate := streams.FlowRatePerSecond(req.FlowRatePerMonth)
	buffer := streams.Buffer(rate)
	minimum := streams.MinimumFunding(rate)
	funding := minimum
	if req.FundingAmount != nil {
		funding = *req.FundingAmount
	}
	if funding < minimum {
		return nil, streams.NewValidationError("funding_amount",
			fmt.Sprintf("below minimum funding: provided %.6f, required %.6f", funding, minimum))
	}

	available, err := s.ledger.AvailableBalance(ctx, req.SenderAccountID)
	if err != nil {
		return nil, err
	}
	if available < funding {
		return nil, &streams.InsufficientBalanceError{
			AccountID: req.SenderAccountID,
			Required:  funding,
			Available: available,
		}
	}

	if actor.AgentID != "" && s.governor != nil {
		decision, err := s.governor.CheckStreamLimit(ctx, actor.AgentID, req.FlowRatePerMonth)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, streams.NewValidationError("agent_limit", decision.Reason)
		}
	}

	now := s.clock.Now().UTC()
	stream := &streams.Stream{
		ID:                "strm-" + uuid.NewString(),
		TenantID:          tenantID,
		SenderAccountID:   req.SenderAccountID,
		ReceiverAccountID: req.ReceiverAccountID,
		Status:            streams.StatusActive,
		FlowRatePerSecond: rate,
		FlowRatePerMonth:  req.FlowRatePerMonth,
		FundedAmount:      funding,
		BufferAmount:      buffer,
		ManagedByAgentID:  actor.AgentID,
		IdempotencyKey:    req.IdempotencyKey,
		StartedAt:         now,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, stream); err != nil {
		return nil, err
	}

	// No transaction spans the stream row and the ledger: compensate with
	// an explicit delete when the hold fails, so the caller never observes
	// an orphaned stream.
	if err := s.ledger.HoldForStream(ctx, req.SenderAccountID, stream.ID, funding, buffer); err != nil {
		_ = s.repo.Delete(ctx, stream.ID)
		metrics.IncStreamOp("create", "error")
		return nil, mapLedgerError(err)
	}

	s.record(ctx, stream, streams.EventCreated, actor, map[string]any{
		"funded_amount":        funding,
		"buffer_amount":        buffer,
		"flow_rate_per_second": rate,
	}, now)

	if actor.AgentID != "" && s.governor != nil {
		if err := s.governor.UpdateAgentStreamStats(ctx, actor.AgentID, 1, req.FlowRatePerMonth); err != nil {
			return nil, err
		}
	}

	metrics.IncStreamOp("create", "success")
	return buildView(stream, streams.ComputeState(stream, now)), nil
}

// Pause freezes accrual at the current live total.
func (s *Service) Pause(ctx context.Context, streamID string, actor Actor) (*StreamView, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.Status != streams.StatusActive {
		return nil, streams.NewValidationError("status", "stream is not active")
	}
	if stream.ManagedByAgentID != "" && actor.AgentID != "" && actor.AgentID != stream.ManagedByAgentID {
		return nil, streams.NewValidationError("actor", "stream is managed by a different agent")
	}

	now := s.clock.Now().UTC()
	state := streams.ComputeState(stream, now)
	stream.TotalStreamed = state.Total
	stream.PausedAt = now
	stream.Status = streams.StatusPaused
	if err := s.persist(ctx, stream, now); err != nil {
		return nil, err
	}

	s.record(ctx, stream, streams.EventPaused, actor, map[string]any{
		"total_streamed": state.Total,
	}, now)
	metrics.IncStreamOp("pause", "success")
	return buildView(stream, streams.ComputeState(stream, now)), nil
}

// Resume restarts accrual, excluding the just-ended paused interval.
func (s *Service) Resume(ctx context.Context, streamID string, actor Actor) (*StreamView, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.Status != streams.StatusPaused {
		return nil, streams.NewValidationError("status", "stream is not paused")
	}

	now := s.clock.Now().UTC()
	stream.TotalPausedSeconds += int64(now.Sub(stream.PausedAt) / time.Second)
	stream.PausedAt = time.Time{}
	stream.Status = streams.StatusActive
	if err := s.persist(ctx, stream, now); err != nil {
		return nil, err
	}

	s.record(ctx, stream, streams.EventResumed, actor, map[string]any{
		"total_paused_seconds": stream.TotalPausedSeconds,
	}, now)
	metrics.IncStreamOp("resume", "success")
	return buildView(stream, streams.ComputeState(stream, now)), nil
}

// TopUp adds funding to a non-cancelled stream and extends its runway.
func (s *Service) TopUp(ctx context.Context, streamID string, req TopUpRequest, actor Actor) (*StreamView, error) {
	if req.Amount <= 0 {
		return nil, streams.NewValidationError("amount", "must be positive")
	}
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.Status == streams.StatusCancelled {
		return nil, streams.NewValidationError("status", "stream is cancelled")
	}

	available, err := s.ledger.AvailableBalance(ctx, stream.SenderAccountID)
	if err != nil {
		return nil, err
	}
	if available < req.Amount {
		return nil, &streams.InsufficientBalanceError{
			AccountID: stream.SenderAccountID,
			Required:  req.Amount,
			Available: available,
		}
	}

	now := s.clock.Now().UTC()
	state := streams.ComputeState(stream, now)
	stream.TotalStreamed = state.Total
	stream.FundedAmount += req.Amount
	if err := s.persist(ctx, stream, now); err != nil {
		return nil, err
	}

	// Row first, ledger second. A hold failure here leaves the stream
	// ahead of the ledger; the reconcile tool reports the drift.
	if err := s.ledger.HoldForStream(ctx, stream.SenderAccountID, stream.ID, req.Amount, 0); err != nil {
		metrics.IncStreamOp("topup", "error")
		return nil, mapLedgerError(err)
	}

	s.record(ctx, stream, streams.EventToppedUp, actor, map[string]any{
		"amount":        req.Amount,
		"funded_amount": stream.FundedAmount,
	}, now)
	metrics.IncStreamOp("topup", "success")
	return buildView(stream, streams.ComputeState(stream, now)), nil
}

// Withdraw credits accrued funds to the receiver. Permitted in any status,
// including cancelled: accrued-but-unwithdrawn funds stay owed to the
// receiver regardless of stream status.
func (s *Service) Withdraw(ctx context.Context, streamID string, req WithdrawRequest, actor Actor) (*StreamView, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	state := streams.ComputeState(stream, now)
	amount := state.Available
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 {
		return nil, streams.NewValidationError("amount", "nothing available to withdraw")
	}
	if amount > state.Available+amountEpsilon {
		return nil, streams.NewValidationError("amount",
			fmt.Sprintf("exceeds available: requested %.6f, available %.6f", amount, state.Available))
	}

	stream.TotalWithdrawn += amount
	// Defensive checkpoint: re-persist the live total alongside the new
	// withdrawn figure so the row never claims withdrawn > streamed.
	stream.TotalStreamed = state.Total
	if err := s.persist(ctx, stream, now); err != nil {
		return nil, err
	}

	if err := s.ledger.Credit(ctx, stream.ReceiverAccountID, amount, "stream_withdrawal", stream.ID); err != nil {
		metrics.IncStreamOp("withdraw", "error")
		return nil, mapLedgerError(err)
	}

	s.record(ctx, stream, streams.EventWithdrawn, actor, map[string]any{
		"amount":          amount,
		"total_withdrawn": stream.TotalWithdrawn,
	}, now)
	metrics.IncStreamOp("withdraw", "success")
	return buildView(stream, streams.ComputeState(stream, now)), nil
}

// Cancel settles the stream: the unearned principal plus the full buffer
// returns to the sender, the accrued-but-unwithdrawn remainder stays
// reserved for the receiver.
func (s *Service) Cancel(ctx context.Context, streamID string, actor Actor) (*StreamView, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.Status == streams.StatusCancelled {
		return nil, streams.NewValidationError("status", "stream is already cancelled")
	}

	now := s.clock.Now().UTC()
	state := streams.ComputeState(stream, now)
	stream.TotalStreamed = state.Total
	stream.Status = streams.StatusCancelled
	stream.CancelledAt = now
	if err := s.persist(ctx, stream, now); err != nil {
		return nil, err
	}

	refund, err := s.ledger.ReleaseFromStream(ctx, stream.SenderAccountID, stream.ID, state.Total, stream.BufferAmount)
	if err != nil {
		metrics.IncStreamOp("cancel", "error")
		return nil, mapLedgerError(err)
	}

	if stream.ManagedByAgentID != "" && s.governor != nil {
		if err := s.governor.UpdateAgentStreamStats(ctx, stream.ManagedByAgentID, -1, -stream.FlowRatePerMonth); err != nil {
			return nil, err
		}
	}

	s.record(ctx, stream, streams.EventCancelled, actor, map[string]any{
		"total_streamed": state.Total,
		"refund":         refund,
	}, now)
	metrics.IncStreamOp("cancel", "success")
	return buildView(stream, streams.ComputeState(stream, now)), nil
}

// Get returns the stream snapshot with its live-computed balance state.
func (s *Service) Get(ctx context.Context, streamID string) (*StreamView, error) {
	stream, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return buildView(stream, streams.ComputeState(stream, s.clock.Now().UTC())), nil
}

// List returns all streams for the requesting tenant.
func (s *Service) List(ctx context.Context) ([]*StreamView, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, streams.NewValidationError("tenant", "tenant is required")
	}
	rows, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	views := make([]*StreamView, 0, len(rows))
	for i := range rows {
		stream := &rows[i]
		views = append(views, buildView(stream, streams.ComputeState(stream, now)))
	}
	return views, nil
}

// ListEvents returns the append-only transition history for a stream.
func (s *Service) ListEvents(ctx context.Context, streamID string) ([]streams.StreamEvent, error) {
	if _, err := s.load(ctx, streamID); err != nil {
		return nil, err
	}
	return s.events.ListByStream(ctx, streamID)
}

const amountEpsilon = 1e-9

func (s *Service) resolveTenant(ctx context.Context, requested string) (string, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		tenantID = requested
	}
	if tenantID == "" {
		return "", streams.NewValidationError("tenant", "tenant is required")
	}
	if requested != "" && requested != tenantID {
		return "", auth.ErrTenantMismatch
	}
	return tenantID, nil
}

func (s *Service) ensureAccounts(ctx context.Context, tenantID string, accountIDs ...string) error {
	if s.accounts == nil {
		return nil
	}
	for _, accountID := range accountIDs {
		if err := s.accounts.EnsureAccountTenant(ctx, tenantID, accountID); err != nil {
			return err
		}
	}
	return nil
}

// load fetches a stream scoped to the requesting tenant. Streams of other
// tenants are indistinguishable from missing ones.
func (s *Service) load(ctx context.Context, streamID string) (*streams.Stream, error) {
	if streamID == "" {
		return nil, streams.ErrStreamNotFound
	}
	stream, err := s.repo.Get(ctx, streamID)
	if err != nil {
		return nil, err
	}
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID != "" && stream.TenantID != tenantID {
		return nil, streams.ErrStreamNotFound
	}
	return stream, nil
}

func (s *Service) persist(ctx context.Context, stream *streams.Stream, now time.Time) error {
	stream.UpdatedAt = now
	return s.repo.Update(ctx, stream)
}

func (s *Service) record(ctx context.Context, stream *streams.Stream, transition string, actor Actor, data map[string]any, now time.Time) {
	payload, _ := json.Marshal(data)
	_ = s.events.Append(ctx, streams.StreamEvent{
		ID:        uuid.NewString(),
		StreamID:  stream.ID,
		TenantID:  stream.TenantID,
		Type:      transition,
		Actor:     actorLabel(actor),
		Data:      payload,
		CreatedAt: now,
	})

	if s.publisher == nil {
		return
	}
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	ctx = eventing.WithTenantID(ctx, stream.TenantID)
	_ = s.publisher.Publish(ctx, streamsevents.StreamTransitioned{
		EventID:       eventID,
		StreamID:      stream.ID,
		TenantID:      stream.TenantID,
		Transition:    transition,
		Actor:         actorLabel(actor),
		TotalStreamed: stream.TotalStreamed,
		FundedAmount:  stream.FundedAmount,
		OccurredAt:    now,
	})
}

func actorLabel(actor Actor) string {
	if actor.AgentID != "" {
		return actor.AgentID
	}
	return actor.Subject
}

func mapLedgerError(err error) error {
	var shortfall *ledger.InsufficientFundsError
	if errors.As(err, &shortfall) {
		return &streams.InsufficientBalanceError{
			AccountID: shortfall.AccountID,
			Required:  shortfall.Required,
			Available: shortfall.Available,
		}
	}
	return err
}
