package ledger

import "time"

// Account is a tenant-owned balance account. Funds are partitioned between
// Available (freely spendable) and Held (committed to streams).
type Account struct {
	ID        string
	TenantID  string
	Available float64
	Held      float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	EntryHold    = "hold"
	EntryRelease = "release"
	EntryCredit  = "credit"
)

// Entry is one append-only ledger movement.
type Entry struct {
	ID            string
	AccountID     string
	EntryType     string
	Amount        float64
	ReferenceType string
	ReferenceID   string
	CreatedAt     time.Time
}

// StreamHold tracks the funds an account has committed to one stream.
// Principal accumulates the funded amount across hold calls (creation plus
// top-ups) and is never reduced by withdrawals; Withdrawn accumulates
// credits paid out against the hold.
type StreamHold struct {
	StreamID  string
	AccountID string
	Principal float64
	Buffer    float64
	Withdrawn float64
	Released  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefundOnRelease returns the amount handed back to the sender when the
// stream is released at the given accrued total: unearned principal plus
// the full buffer. The remainder stays held for the receiver.
func (h *StreamHold) RefundOnRelease(accruedTotal float64) float64 {
	refund := h.Principal - accruedTotal + h.Buffer
	if refund < 0 {
		return 0
	}
	return refund
}
