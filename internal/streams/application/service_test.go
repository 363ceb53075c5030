package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"paystream-cloud/internal/auth"
	governance "paystream-cloud/internal/governance/domain"
	ledger "paystream-cloud/internal/ledger/domain"
	"paystream-cloud/internal/streams/infrastructure/memory"

	streams "paystream-cloud/internal/streams/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type holdCall struct {
	accountID string
	streamID  string
	amount    float64
	buffer    float64
}

type creditCall struct {
	accountID     string
	amount        float64
	referenceType string
	referenceID   string
}

type stubLedger struct {
	available map[string]float64
	holdErr   error

	holds     []holdCall
	credits   []creditCall
	principal map[string]float64
	buffers   map[string]float64
	released  map[string]bool
	refunds   []float64
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		available: make(map[string]float64),
		principal: make(map[string]float64),
		buffers:   make(map[string]float64),
		released:  make(map[string]bool),
	}
}

func (l *stubLedger) AvailableBalance(_ context.Context, accountID string) (float64, error) {
	return l.available[accountID], nil
}

func (l *stubLedger) HoldForStream(_ context.Context, accountID, streamID string, amount, buffer float64) error {
	if l.holdErr != nil {
		return l.holdErr
	}
	total := amount + buffer
	if l.available[accountID] < total {
		return &ledger.InsufficientFundsError{AccountID: accountID, Required: total, Available: l.available[accountID]}
	}
	l.available[accountID] -= total
	l.principal[streamID] += amount
	l.buffers[streamID] += buffer
	l.holds = append(l.holds, holdCall{accountID: accountID, streamID: streamID, amount: amount, buffer: buffer})
	return nil
}

func (l *stubLedger) ReleaseFromStream(_ context.Context, accountID, streamID string, accruedTotal, buffer float64) (float64, error) {
	if l.released[streamID] {
		return 0, ledger.ErrHoldReleased
	}
	refund := l.principal[streamID] - accruedTotal + buffer
	if refund < 0 {
		refund = 0
	}
	l.available[accountID] += refund
	l.released[streamID] = true
	l.refunds = append(l.refunds, refund)
	return refund, nil
}

func (l *stubLedger) Credit(_ context.Context, accountID string, amount float64, referenceType, referenceID string) error {
	l.available[accountID] += amount
	l.credits = append(l.credits, creditCall{accountID: accountID, amount: amount, referenceType: referenceType, referenceID: referenceID})
	return nil
}

type stubGovernor struct {
	decision governance.Decision
	checks   int
	counts   map[string]int
	flows    map[string]float64
}

func newStubGovernor(allowed bool, reason string) *stubGovernor {
	return &stubGovernor{
		decision: governance.Decision{Allowed: allowed, Reason: reason},
		counts:   make(map[string]int),
		flows:    make(map[string]float64),
	}
}

func (g *stubGovernor) CheckStreamLimit(_ context.Context, _ string, _ float64) (governance.Decision, error) {
	g.checks++
	return g.decision, nil
}

func (g *stubGovernor) UpdateAgentStreamStats(_ context.Context, agentID string, deltaCount int, deltaFlow float64) error {
	g.counts[agentID] += deltaCount
	g.flows[agentID] += deltaFlow
	return nil
}

type testEnv struct {
	service *Service
	repo    *memory.StreamRepository
	events  *memory.EventRecorder
	ledger  *stubLedger
	clock   *fakeClock
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	repo := memory.NewStreamRepository()
	events := memory.NewEventRecorder()
	balances := newStubLedger()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	balances.available["acct-sender"] = 5000
	balances.available["acct-receiver"] = 0

	opts = append([]Option{WithClock(clock)}, opts...)
	service, err := NewService(repo, events, balances, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{service: service, repo: repo, events: events, ledger: balances, clock: clock}
}

func tenantContext(tenantID string) context.Context {
	return auth.WithIdentity(context.Background(), tenantID, auth.RoleOperator, "user-1", "")
}

func floatPtr(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func createStream(t *testing.T, env *testEnv, funding float64) *StreamView {
	t.Helper()
	view, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(funding),
	}, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}
	return view
}

func TestCreate_PolicyDerivation(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	if !almostEqual(view.FlowRatePerSecond, 0.001) {
		t.Fatalf("expected rate 0.001, got %v", view.FlowRatePerSecond)
	}
	if !almostEqual(view.BufferAmount, 14.4) {
		t.Fatalf("expected buffer 14.4, got %v", view.BufferAmount)
	}
	if view.Status != streams.StatusActive {
		t.Fatalf("expected active, got %s", view.Status)
	}
	if len(env.ledger.holds) != 1 {
		t.Fatalf("expected 1 hold, got %d", len(env.ledger.holds))
	}
	hold := env.ledger.holds[0]
	if !almostEqual(hold.amount, 1000) || !almostEqual(hold.buffer, 14.4) {
		t.Fatalf("unexpected hold amounts: %+v", hold)
	}
	if !almostEqual(env.ledger.available["acct-sender"], 5000-1014.4) {
		t.Fatalf("expected sender available 3985.6, got %v", env.ledger.available["acct-sender"])
	}
}

func TestCreate_DefaultFundingIsMinimum(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
	}, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// buffer (14.4) + one week of flow (604.8)
	if !almostEqual(view.FundedAmount, 619.2) {
		t.Fatalf("expected funded 619.2, got %v", view.FundedAmount)
	}
}

func TestCreate_BelowMinimumFundingRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(100),
	}, Actor{Subject: "user-1"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(env.ledger.holds) != 0 {
		t.Fatalf("expected no holds, got %d", len(env.ledger.holds))
	}
}

func TestCreate_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.available["acct-sender"] = 500
	_, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(1000),
	}, Actor{Subject: "user-1"})
	if !streams.IsInsufficientBalance(err) {
		t.Fatalf("expected insufficient balance error, got %v", err)
	}
}

func TestCreate_SameSenderReceiverRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-sender",
		FlowRatePerMonth:  2592,
	}, Actor{Subject: "user-1"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_IdempotencyKeyReturnsExisting(t *testing.T) {
	env := newTestEnv(t)
	req := CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(1000),
		IdempotencyKey:    "idem-1",
	}
	first, err := env.service.Create(tenantContext("tenant-a"), req, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := env.service.Create(tenantContext("tenant-a"), req, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same stream, got %s and %s", first.ID, second.ID)
	}
	if len(env.ledger.holds) != 1 {
		t.Fatalf("expected a single hold, got %d", len(env.ledger.holds))
	}
}

func TestCreate_HoldFailureRollsBackStream(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.holdErr = errors.New("ledger unavailable")
	_, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(1000),
		IdempotencyKey:    "idem-roll",
	}, Actor{Subject: "user-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := env.repo.FindByIdempotencyKey(context.Background(), "tenant-a", "idem-roll"); !errors.Is(err, streams.ErrStreamNotFound) {
		t.Fatalf("expected stream rolled back, got %v", err)
	}
}

func TestGet_ActiveAccrual(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(100_000 * time.Second)
	got, err := env.service.Get(tenantContext("tenant-a"), view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !almostEqual(got.TotalStreamed, 100) {
		t.Fatalf("expected total 100, got %v", got.TotalStreamed)
	}
	if got.RunwaySeconds != 900_000 {
		t.Fatalf("expected runway 900000, got %d", got.RunwaySeconds)
	}
	if got.Health != streams.HealthHealthy {
		t.Fatalf("expected healthy, got %s", got.Health)
	}
}

func TestPauseResume_ExcludesPausedTime(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(100_000 * time.Second)
	paused, err := env.service.Pause(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !almostEqual(paused.TotalStreamed, 100) {
		t.Fatalf("expected frozen total 100, got %v", paused.TotalStreamed)
	}

	// Frozen while paused.
	env.clock.Advance(50_000 * time.Second)
	frozen, err := env.service.Get(tenantContext("tenant-a"), view.ID)
	if err != nil {
		t.Fatalf("get paused: %v", err)
	}
	if !almostEqual(frozen.TotalStreamed, 100) {
		t.Fatalf("expected total still 100 while paused, got %v", frozen.TotalStreamed)
	}

	resumed, err := env.service.Resume(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.TotalPausedSeconds != 50_000 {
		t.Fatalf("expected 50000 paused seconds, got %d", resumed.TotalPausedSeconds)
	}

	env.clock.Advance(50_000 * time.Second)
	got, err := env.service.Get(tenantContext("tenant-a"), view.ID)
	if err != nil {
		t.Fatalf("get resumed: %v", err)
	}
	if !almostEqual(got.TotalStreamed, 150) {
		t.Fatalf("expected total 150, got %v", got.TotalStreamed)
	}
}

func TestPause_NotActiveRejected(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)
	if _, err := env.service.Pause(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	_, err := env.service.Pause(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAccrual_CapsAtFundedAmount(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	// Funding covers exactly 1,000,000 seconds at 0.001/s.
	env.clock.Advance(2_000_000 * time.Second)
	got, err := env.service.Get(tenantContext("tenant-a"), view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !almostEqual(got.TotalStreamed, 1000) {
		t.Fatalf("expected total capped at 1000, got %v", got.TotalStreamed)
	}
	if got.RunwaySeconds != 0 {
		t.Fatalf("expected zero runway, got %d", got.RunwaySeconds)
	}
	if got.Health != streams.HealthCritical {
		t.Fatalf("expected critical, got %s", got.Health)
	}
}

func TestWithdraw_CreditsReceiver(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(100_000 * time.Second)
	got, err := env.service.Withdraw(tenantContext("tenant-a"), view.ID, WithdrawRequest{Amount: floatPtr(60)}, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !almostEqual(got.TotalWithdrawn, 60) {
		t.Fatalf("expected withdrawn 60, got %v", got.TotalWithdrawn)
	}
	if !almostEqual(got.Available, 40) {
		t.Fatalf("expected available 40, got %v", got.Available)
	}
	if len(env.ledger.credits) != 1 {
		t.Fatalf("expected 1 credit, got %d", len(env.ledger.credits))
	}
	credit := env.ledger.credits[0]
	if credit.accountID != "acct-receiver" || !almostEqual(credit.amount, 60) || credit.referenceType != "stream_withdrawal" {
		t.Fatalf("unexpected credit: %+v", credit)
	}
}

func TestWithdraw_DefaultsToFullAvailable(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(100_000 * time.Second)
	got, err := env.service.Withdraw(tenantContext("tenant-a"), view.ID, WithdrawRequest{}, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !almostEqual(got.TotalWithdrawn, 100) {
		t.Fatalf("expected withdrawn 100, got %v", got.TotalWithdrawn)
	}
	if !almostEqual(got.Available, 0) {
		t.Fatalf("expected available 0, got %v", got.Available)
	}
}

func TestWithdraw_OverAvailableRejected(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(100_000 * time.Second)
	_, err := env.service.Withdraw(tenantContext("tenant-a"), view.ID, WithdrawRequest{Amount: floatPtr(150)}, Actor{Subject: "user-1"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancel_RefundsSenderAndKeepsReceiverClaim(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(150_000 * time.Second)
	if _, err := env.service.Withdraw(tenantContext("tenant-a"), view.ID, WithdrawRequest{Amount: floatPtr(60)}, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	cancelled, err := env.service.Cancel(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != streams.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	// refund = funded (1000) - accrued (150) + buffer (14.4)
	if len(env.ledger.refunds) != 1 || !almostEqual(env.ledger.refunds[0], 864.4) {
		t.Fatalf("expected refund 864.4, got %v", env.ledger.refunds)
	}

	// Frozen after cancellation.
	env.clock.Advance(100_000 * time.Second)
	got, err := env.service.Get(tenantContext("tenant-a"), view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !almostEqual(got.TotalStreamed, 150) {
		t.Fatalf("expected frozen total 150, got %v", got.TotalStreamed)
	}
	if !almostEqual(got.Available, 90) {
		t.Fatalf("expected available 90, got %v", got.Available)
	}

	// Withdrawal of the accrued remainder is still allowed.
	post, err := env.service.Withdraw(tenantContext("tenant-a"), view.ID, WithdrawRequest{}, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("post-cancel withdraw: %v", err)
	}
	if !almostEqual(post.Available, 0) {
		t.Fatalf("expected available 0 after full withdrawal, got %v", post.Available)
	}
}

func TestCancel_AlreadyCancelledRejected(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)
	if _, err := env.service.Cancel(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := env.service.Cancel(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTopUp_ExtendsRunway(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(100_000 * time.Second)
	got, err := env.service.TopUp(tenantContext("tenant-a"), view.ID, TopUpRequest{Amount: 500}, Actor{Subject: "user-1"})
	if err != nil {
		t.Fatalf("topup: %v", err)
	}
	if !almostEqual(got.FundedAmount, 1500) {
		t.Fatalf("expected funded 1500, got %v", got.FundedAmount)
	}
	if got.RunwaySeconds != 1_400_000 {
		t.Fatalf("expected runway 1400000, got %d", got.RunwaySeconds)
	}
	if len(env.ledger.holds) != 2 {
		t.Fatalf("expected 2 holds, got %d", len(env.ledger.holds))
	}
	topup := env.ledger.holds[1]
	if !almostEqual(topup.amount, 500) || !almostEqual(topup.buffer, 0) {
		t.Fatalf("unexpected topup hold: %+v", topup)
	}
}

func TestTopUp_CancelledRejected(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)
	if _, err := env.service.Cancel(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := env.service.TopUp(tenantContext("tenant-a"), view.ID, TopUpRequest{Amount: 500}, Actor{Subject: "user-1"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAgentGovernance(t *testing.T) {
	governor := newStubGovernor(true, "")
	env := newTestEnv(t, WithGovernor(governor))

	view, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(1000),
	}, Actor{Subject: "agent-svc", AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if governor.checks != 1 {
		t.Fatalf("expected 1 limit check, got %d", governor.checks)
	}
	if governor.counts["agent-1"] != 1 || !almostEqual(governor.flows["agent-1"], 2592) {
		t.Fatalf("unexpected agent stats: counts=%v flows=%v", governor.counts, governor.flows)
	}

	if _, err := env.service.Cancel(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if governor.counts["agent-1"] != 0 || !almostEqual(governor.flows["agent-1"], 0) {
		t.Fatalf("expected stats reversed on cancel: counts=%v flows=%v", governor.counts, governor.flows)
	}
}

func TestAgentGovernance_Denied(t *testing.T) {
	governor := newStubGovernor(false, "flow rate limit exceeded")
	env := newTestEnv(t, WithGovernor(governor))

	_, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(1000),
	}, Actor{Subject: "agent-svc", AgentID: "agent-1"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(env.ledger.holds) != 0 {
		t.Fatalf("expected no holds, got %d", len(env.ledger.holds))
	}
}

func TestPause_DifferentAgentRejected(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
		FundingAmount:     floatPtr(1000),
	}, Actor{Subject: "agent-svc", AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = env.service.Pause(tenantContext("tenant-a"), view.ID, Actor{Subject: "agent-svc", AgentID: "agent-2"})
	if !streams.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.service.Pause(tenantContext("tenant-a"), view.ID, Actor{Subject: "agent-svc", AgentID: "agent-1"}); err != nil {
		t.Fatalf("managing agent pause: %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	if _, err := env.service.Get(tenantContext("tenant-b"), view.ID); !errors.Is(err, streams.ErrStreamNotFound) {
		t.Fatalf("expected not found for other tenant, got %v", err)
	}

	views, err := env.service.List(tenantContext("tenant-b"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected no streams for tenant-b, got %d", len(views))
	}
}

func TestCreate_TenantMismatch(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Create(tenantContext("tenant-a"), CreateRequest{
		TenantID:          "tenant-b",
		SenderAccountID:   "acct-sender",
		ReceiverAccountID: "acct-receiver",
		FlowRatePerMonth:  2592,
	}, Actor{Subject: "user-1"})
	if !errors.Is(err, auth.ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
}

func TestListEvents_RecordsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	view := createStream(t, env, 1000)

	env.clock.Advance(100_000 * time.Second)
	if _, err := env.service.Pause(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := env.service.Resume(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := env.service.Cancel(tenantContext("tenant-a"), view.ID, Actor{Subject: "user-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	events, err := env.service.ListEvents(tenantContext("tenant-a"), view.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []string{streams.EventCreated, streams.EventPaused, streams.EventResumed, streams.EventCancelled}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, event := range events {
		if event.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], event.Type)
		}
		if event.StreamID != view.ID {
			t.Fatalf("event %d: wrong stream id %s", i, event.StreamID)
		}
	}
}
