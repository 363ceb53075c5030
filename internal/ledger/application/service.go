package application

import (
	"context"
	"errors"

	ledger "paystream-cloud/internal/ledger/domain"
)

// Store provides the ledger's balance-moving primitives. Each call is
// atomic over the account row and its entry log.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (*ledger.Account, error)
	CreateAccount(ctx context.Context, account *ledger.Account) error
	Hold(ctx context.Context, accountID, streamID string, amount, buffer float64) error
	Release(ctx context.Context, accountID, streamID string, accruedTotal, buffer float64) (float64, error)
	Credit(ctx context.Context, accountID string, amount float64, referenceType, referenceID string) error
}

// Service exposes the balance ledger contract consumed by the stream
// lifecycle controller.
type Service struct {
	store Store
}

// NewService constructs a ledger service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger: nil store")
	}
	return &Service{store: store}, nil
}

// GetAccount fetches an account snapshot.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*ledger.Account, error) {
	if accountID == "" {
		return nil, ledger.ErrAccountNotFound
	}
	return s.store.GetAccount(ctx, accountID)
}

// CreateAccount opens a tenant account with an optional starting balance.
func (s *Service) CreateAccount(ctx context.Context, tenantID, accountID string, openingBalance float64) (*ledger.Account, error) {
	if tenantID == "" || accountID == "" {
		return nil, errors.New("ledger: tenant and account are required")
	}
	if openingBalance < 0 {
		return nil, ledger.ErrNonPositiveAmount
	}
	account := &ledger.Account{
		ID:        accountID,
		TenantID:  tenantID,
		Available: openingBalance,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, accountID)
}

// AvailableBalance returns the account's freely spendable balance.
func (s *Service) AvailableBalance(ctx context.Context, accountID string) (float64, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Available, nil
}

// HoldForStream moves amount+buffer from the account's available balance
// into held, committed to the given stream.
func (s *Service) HoldForStream(ctx context.Context, accountID, streamID string, amount, buffer float64) error {
	if amount <= 0 || buffer < 0 {
		return ledger.ErrNonPositiveAmount
	}
	return s.store.Hold(ctx, accountID, streamID, amount, buffer)
}

// ReleaseFromStream returns the unearned principal plus buffer to the
// account's available balance, leaving the accrued-but-unwithdrawn portion
// held for the receiver.
func (s *Service) ReleaseFromStream(ctx context.Context, accountID, streamID string, accruedTotal, buffer float64) (float64, error) {
	if accruedTotal < 0 || buffer < 0 {
		return 0, ledger.ErrNonPositiveAmount
	}
	return s.store.Release(ctx, accountID, streamID, accruedTotal, buffer)
}

// Credit adds funds to an account's available balance.
func (s *Service) Credit(ctx context.Context, accountID string, amount float64, referenceType, referenceID string) error {
	if amount <= 0 {
		return ledger.ErrNonPositiveAmount
	}
	return s.store.Credit(ctx, accountID, amount, referenceType, referenceID)
}
