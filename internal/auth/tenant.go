package auth

import (
	"context"
	"database/sql"
	"errors"

	ledger "paystream-cloud/internal/ledger/domain"
	ledgerpg "paystream-cloud/internal/ledger/infrastructure/postgres"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// AccountTenantChecker validates account tenant ownership.
type AccountTenantChecker interface {
	EnsureAccountTenant(ctx context.Context, tenantID, accountID string) error
}

// AccountChecker checks account ownership using the ledger.
type AccountChecker struct {
	store *ledgerpg.Store
}

// NewAccountChecker constructs an AccountChecker.
func NewAccountChecker(db *sql.DB) *AccountChecker {
	if db == nil {
		return nil
	}
	return &AccountChecker{store: ledgerpg.NewStore(db)}
}

// EnsureAccountTenant verifies the account belongs to the tenant.
func (c *AccountChecker) EnsureAccountTenant(ctx context.Context, tenantID, accountID string) error {
	if c == nil || c.store == nil {
		return nil
	}
	if tenantID == "" || accountID == "" {
		return nil
	}
	account, err := c.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ErrNotFound
		}
		return err
	}
	if account.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
