package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	ledger "paystream-cloud/internal/ledger/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func seedStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore()
	ctx := context.Background()
	if err := store.CreateAccount(ctx, &ledger.Account{ID: "acct-sender", TenantID: "tenant-1", Available: 2000}); err != nil {
		t.Fatalf("create sender: %v", err)
	}
	if err := store.CreateAccount(ctx, &ledger.Account{ID: "acct-receiver", TenantID: "tenant-1"}); err != nil {
		t.Fatalf("create receiver: %v", err)
	}
	return store
}

func TestHoldMovesAvailableToHeld(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	if err := store.Hold(ctx, "acct-sender", "stream-1", 1000, 14.4); err != nil {
		t.Fatalf("hold: %v", err)
	}
	account, err := store.GetAccount(ctx, "acct-sender")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !almostEqual(account.Available, 985.6) || !almostEqual(account.Held, 1014.4) {
		t.Fatalf("balances after hold: available=%v held=%v", account.Available, account.Held)
	}
}

func TestHoldRejectsShortfall(t *testing.T) {
	store := seedStore(t)
	err := store.Hold(context.Background(), "acct-sender", "stream-1", 5000, 14.4)
	var shortfall *ledger.InsufficientFundsError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !almostEqual(shortfall.Available, 2000) {
		t.Fatalf("shortfall available: got %v, want 2000", shortfall.Available)
	}
}

func TestReleaseRefundsUnearnedPrincipalAndBuffer(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	if err := store.Hold(ctx, "acct-sender", "stream-1", 1000, 14.4); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := store.Credit(ctx, "acct-receiver", 60, "stream_withdrawal", "stream-1"); err != nil {
		t.Fatalf("withdrawal credit: %v", err)
	}

	refund, err := store.Release(ctx, "acct-sender", "stream-1", 150, 14.4)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !almostEqual(refund, 864.4) {
		t.Fatalf("refund: got %v, want 864.4", refund)
	}

	sender, _ := store.GetAccount(ctx, "acct-sender")
	// 90 stays held: accrued 150 minus the 60 already withdrawn.
	if !almostEqual(sender.Held, 90) {
		t.Fatalf("held after release: got %v, want 90", sender.Held)
	}

	if _, err := store.Release(ctx, "acct-sender", "stream-1", 150, 14.4); !errors.Is(err, ledger.ErrHoldReleased) {
		t.Fatalf("second release: got %v, want ErrHoldReleased", err)
	}
}

func TestWithdrawalCreditDrainsHeldAfterRelease(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	if err := store.Hold(ctx, "acct-sender", "stream-1", 1000, 14.4); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := store.Release(ctx, "acct-sender", "stream-1", 150, 14.4); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := store.Credit(ctx, "acct-receiver", 150, "stream_withdrawal", "stream-1"); err != nil {
		t.Fatalf("post-release withdrawal: %v", err)
	}

	sender, _ := store.GetAccount(ctx, "acct-sender")
	receiver, _ := store.GetAccount(ctx, "acct-receiver")
	if !almostEqual(sender.Held, 0) {
		t.Fatalf("held after full withdrawal: got %v, want 0", sender.Held)
	}
	if !almostEqual(receiver.Available, 150) {
		t.Fatalf("receiver available: got %v, want 150", receiver.Available)
	}
}
