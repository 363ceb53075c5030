package memory

import (
	"context"
	"sync"
	"time"

	ledger "paystream-cloud/internal/ledger/domain"
)

// Store is an in-memory balance ledger for demo/testing.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*ledger.Account
	holds    map[string]*ledger.StreamHold
	entries  []ledger.Entry
}

// NewStore constructs an empty in-memory ledger.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*ledger.Account),
		holds:    make(map[string]*ledger.StreamHold),
	}
}

// CreateAccount inserts an account.
func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *account
	copy.CreatedAt = time.Now().UTC()
	copy.UpdatedAt = copy.CreatedAt
	s.accounts[account.ID] = &copy
	return nil
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*ledger.Account, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	copy := *account
	return &copy, nil
}

// Hold moves amount+buffer from available to held.
func (s *Store) Hold(ctx context.Context, accountID, streamID string, amount, buffer float64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	total := amount + buffer
	if account.Available < total {
		return &ledger.InsufficientFundsError{AccountID: accountID, Required: total, Available: account.Available}
	}
	account.Available -= total
	account.Held += total

	hold, ok := s.holds[streamID]
	if !ok {
		hold = &ledger.StreamHold{StreamID: streamID, AccountID: accountID, CreatedAt: time.Now().UTC()}
		s.holds[streamID] = hold
	}
	hold.Principal += amount
	hold.Buffer += buffer
	hold.UpdatedAt = time.Now().UTC()

	s.append(accountID, ledger.EntryHold, total, "stream", streamID)
	return nil
}

// Release refunds unearned principal plus buffer to available.
func (s *Store) Release(ctx context.Context, accountID, streamID string, accruedTotal, buffer float64) (float64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.holds[streamID]
	if !ok || hold.AccountID != accountID {
		return 0, ledger.ErrHoldNotFound
	}
	if hold.Released {
		return 0, ledger.ErrHoldReleased
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}

	refund := hold.RefundOnRelease(accruedTotal)
	if refund > 0 {
		if account.Held < refund {
			return 0, &ledger.InsufficientFundsError{AccountID: accountID, Required: refund, Available: account.Held}
		}
		account.Held -= refund
		account.Available += refund
	}
	hold.Released = true
	hold.UpdatedAt = time.Now().UTC()

	s.append(accountID, ledger.EntryRelease, refund, "stream", streamID)
	return refund, nil
}

// Credit adds amount to an account's available balance; stream withdrawal
// credits also drain the sender's hold.
func (s *Store) Credit(ctx context.Context, accountID string, amount float64, referenceType, referenceID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if referenceType == "stream_withdrawal" {
		hold, ok := s.holds[referenceID]
		if !ok {
			return ledger.ErrHoldNotFound
		}
		sender, ok := s.accounts[hold.AccountID]
		if !ok {
			return ledger.ErrAccountNotFound
		}
		if sender.Held < amount {
			return &ledger.InsufficientFundsError{AccountID: hold.AccountID, Required: amount, Available: sender.Held}
		}
		sender.Held -= amount
		hold.Withdrawn += amount
		hold.UpdatedAt = time.Now().UTC()
	}

	account, ok := s.accounts[accountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	account.Available += amount

	s.append(accountID, ledger.EntryCredit, amount, referenceType, referenceID)
	return nil
}

// GetHold fetches the hold record for a stream.
func (s *Store) GetHold(ctx context.Context, streamID string) (*ledger.StreamHold, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	hold, ok := s.holds[streamID]
	if !ok {
		return nil, ledger.ErrHoldNotFound
	}
	copy := *hold
	return &copy, nil
}

// Entries returns a snapshot of recorded ledger entries.
func (s *Store) Entries() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Entry(nil), s.entries...)
}

func (s *Store) append(accountID, entryType string, amount float64, referenceType, referenceID string) {
	s.entries = append(s.entries, ledger.Entry{
		AccountID:     accountID,
		EntryType:     entryType,
		Amount:        amount,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		CreatedAt:     time.Now().UTC(),
	})
}
