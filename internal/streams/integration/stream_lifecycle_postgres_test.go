package integration_test

import (
	"context"
	"database/sql"
	"math"
	"os"
	"testing"
	"time"

	"paystream-cloud/internal/auth"
	ledgerapp "paystream-cloud/internal/ledger/application"
	ledgerrepo "paystream-cloud/internal/ledger/infrastructure/postgres"
	streamsapp "paystream-cloud/internal/streams/application"
	streamsrepo "paystream-cloud/internal/streams/infrastructure/postgres"

	streams "paystream-cloud/internal/streams/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStreamLifecycle_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "accounts") ||
		!tableExists(db, "ledger_entries") ||
		!tableExists(db, "stream_holds") ||
		!tableExists(db, "streams") ||
		!tableExists(db, "stream_events") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	tenantID := "tenant-it-stream"
	senderID := "acct-it-sender"
	receiverID := "acct-it-receiver"

	_, _ = db.ExecContext(ctx, "DELETE FROM stream_events WHERE tenant_id = $1", tenantID)
	_, _ = db.ExecContext(ctx, "DELETE FROM streams WHERE tenant_id = $1", tenantID)
	_, _ = db.ExecContext(ctx, "DELETE FROM stream_holds WHERE account_id IN ($1, $2)", senderID, receiverID)
	_, _ = db.ExecContext(ctx, "DELETE FROM ledger_entries WHERE account_id IN ($1, $2)", senderID, receiverID)
	_, _ = db.ExecContext(ctx, "DELETE FROM accounts WHERE id IN ($1, $2)", senderID, receiverID)

	store := ledgerrepo.NewStore(db)
	balances, err := ledgerapp.NewService(store)
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}
	if _, err := balances.CreateAccount(ctx, tenantID, senderID, 5000); err != nil {
		t.Fatalf("create sender: %v", err)
	}
	if _, err := balances.CreateAccount(ctx, tenantID, receiverID, 0); err != nil {
		t.Fatalf("create receiver: %v", err)
	}

	clock := &manualClock{now: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)}
	repo := streamsrepo.NewStreamRepository(db)
	events := streamsrepo.NewEventRepository(db)
	service, err := streamsapp.NewService(repo, events, balances,
		streamsapp.WithClock(clock),
		streamsapp.WithAccountDirectory(auth.NewAccountChecker(db)))
	if err != nil {
		t.Fatalf("new stream service: %v", err)
	}

	ctx = auth.WithIdentity(ctx, tenantID, auth.RoleOperator, "it-user", "")
	actor := streamsapp.Actor{Subject: "it-user"}
	funding := 1000.0

	view, err := service.Create(ctx, streamsapp.CreateRequest{
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		FlowRatePerMonth:  2592,
		FundingAmount:     &funding,
		IdempotencyKey:    "it-key-1",
	}, actor)
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}

	sender, err := balances.GetAccount(ctx, senderID)
	if err != nil {
		t.Fatalf("get sender: %v", err)
	}
	if !near(sender.Available, 3985.6) || !near(sender.Held, 1014.4) {
		t.Fatalf("unexpected sender after hold: available=%v held=%v", sender.Available, sender.Held)
	}

	// Repeated key returns the same stream without a second hold.
	again, err := service.Create(ctx, streamsapp.CreateRequest{
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		FlowRatePerMonth:  2592,
		FundingAmount:     &funding,
		IdempotencyKey:    "it-key-1",
	}, actor)
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if again.ID != view.ID {
		t.Fatalf("expected idempotent create, got %s and %s", view.ID, again.ID)
	}

	clock.Advance(100_000 * time.Second)
	if _, err := service.Pause(ctx, view.ID, actor); err != nil {
		t.Fatalf("pause: %v", err)
	}
	clock.Advance(50_000 * time.Second)
	if _, err := service.Resume(ctx, view.ID, actor); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clock.Advance(50_000 * time.Second)

	got, err := service.Get(ctx, view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !near(got.TotalStreamed, 150) {
		t.Fatalf("expected total 150, got %v", got.TotalStreamed)
	}

	amount := 60.0
	if _, err := service.Withdraw(ctx, view.ID, streamsapp.WithdrawRequest{Amount: &amount}, actor); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	receiver, err := balances.GetAccount(ctx, receiverID)
	if err != nil {
		t.Fatalf("get receiver: %v", err)
	}
	if !near(receiver.Available, 60) {
		t.Fatalf("expected receiver 60, got %v", receiver.Available)
	}

	if _, err := service.Cancel(ctx, view.ID, actor); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	sender, err = balances.GetAccount(ctx, senderID)
	if err != nil {
		t.Fatalf("get sender after cancel: %v", err)
	}
	// refund = 1000 - 150 + 14.4
	if !near(sender.Available, 4850) || !near(sender.Held, 90) {
		t.Fatalf("unexpected sender after cancel: available=%v held=%v", sender.Available, sender.Held)
	}

	// The accrued remainder stays withdrawable after cancellation.
	if _, err := service.Withdraw(ctx, view.ID, streamsapp.WithdrawRequest{}, actor); err != nil {
		t.Fatalf("post-cancel withdraw: %v", err)
	}
	receiver, err = balances.GetAccount(ctx, receiverID)
	if err != nil {
		t.Fatalf("get receiver after drain: %v", err)
	}
	if !near(receiver.Available, 150) {
		t.Fatalf("expected receiver 150, got %v", receiver.Available)
	}
	sender, err = balances.GetAccount(ctx, senderID)
	if err != nil {
		t.Fatalf("get sender after drain: %v", err)
	}
	if !near(sender.Held, 0) {
		t.Fatalf("expected sender held drained, got %v", sender.Held)
	}

	history, err := service.ListEvents(ctx, view.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []string{
		streams.EventCreated, streams.EventPaused, streams.EventResumed,
		streams.EventWithdrawn, streams.EventCancelled, streams.EventWithdrawn,
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(history))
	}
	for i, event := range history {
		if event.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], event.Type)
		}
	}
}

func TestStreamRepository_VersionConflict_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if !tableExists(db, "streams") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	repo := streamsrepo.NewStreamRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	stream := &streams.Stream{
		ID:                "strm-it-cas",
		TenantID:          "tenant-it-cas",
		SenderAccountID:   "acct-a",
		ReceiverAccountID: "acct-b",
		Status:            streams.StatusActive,
		FlowRatePerSecond: 0.001,
		FlowRatePerMonth:  2592,
		FundedAmount:      1000,
		BufferAmount:      14.4,
		StartedAt:         now,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, _ = db.ExecContext(ctx, "DELETE FROM streams WHERE id = $1", stream.ID)
	if err := repo.Create(ctx, stream); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = repo.Delete(ctx, stream.ID) }()

	first := stream.Clone()
	second := stream.Clone()
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := repo.Update(ctx, second); err != streams.ErrVersionConflict {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
