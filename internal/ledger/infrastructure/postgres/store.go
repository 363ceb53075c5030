package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	ledger "paystream-cloud/internal/ledger/domain"
)

// Store is a Postgres implementation of the balance ledger primitives.
// Balance movements use conditional updates (rows-affected checks on a
// balance guard) so concurrent movements on one account never overdraw it.
type Store struct {
	db *sql.DB
}

// NewStore constructs a ledger store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*ledger.Account, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, tenant_id, available, held, created_at, updated_at
FROM accounts
WHERE id = $1
LIMIT 1`, accountID)

	var account ledger.Account
	if err := row.Scan(&account.ID, &account.TenantID, &account.Available, &account.Held,
		&account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return &account, nil
}

// CreateAccount inserts an account.
func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if s == nil || s.db == nil {
		return errors.New("ledger store: nil db")
	}
	if account == nil {
		return errors.New("ledger store: nil account")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (id, tenant_id, available, held, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`,
		account.ID, account.TenantID, account.Available, account.Held, now)
	return err
}

// Hold moves amount+buffer from available to held and records the stream
// hold. Fails with InsufficientFundsError when available cannot cover it.
func (s *Store) Hold(ctx context.Context, accountID, streamID string, amount, buffer float64) error {
	if s == nil || s.db == nil {
		return errors.New("ledger store: nil db")
	}
	total := amount + buffer
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
UPDATE accounts
SET available = available - $1, held = held + $1, updated_at = $2
WHERE id = $3 AND available >= $1`, total, now, accountID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return s.shortfallError(ctx, accountID, total)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO stream_holds (stream_id, account_id, principal, buffer, withdrawn, released, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, FALSE, $5, $5)
ON CONFLICT (stream_id)
DO UPDATE SET principal = stream_holds.principal + EXCLUDED.principal,
	buffer = stream_holds.buffer + EXCLUDED.buffer,
	updated_at = EXCLUDED.updated_at`,
		streamID, accountID, amount, buffer, now); err != nil {
		return err
	}

	if err := insertEntry(ctx, tx, accountID, ledger.EntryHold, total, "stream", streamID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// Release returns the unearned principal plus buffer from held to available
// and marks the hold released. The accrued-but-unwithdrawn remainder stays
// held so the receiver can still withdraw it. Returns the refunded amount.
func (s *Store) Release(ctx context.Context, accountID, streamID string, accruedTotal, buffer float64) (float64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("ledger store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	hold, err := lockHold(ctx, tx, streamID)
	if err != nil {
		return 0, err
	}
	if hold.Released {
		return 0, ledger.ErrHoldReleased
	}
	if hold.AccountID != accountID {
		return 0, ledger.ErrHoldNotFound
	}

	refund := hold.RefundOnRelease(accruedTotal)
	now := time.Now().UTC()
	if refund > 0 {
		result, err := tx.ExecContext(ctx, `
UPDATE accounts
SET held = held - $1, available = available + $1, updated_at = $2
WHERE id = $3 AND held >= $1`, refund, now, accountID)
		if err != nil {
			return 0, err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return 0, s.shortfallError(ctx, accountID, refund)
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE stream_holds SET released = TRUE, updated_at = $1 WHERE stream_id = $2`, now, streamID); err != nil {
		return 0, err
	}
	if err := insertEntry(ctx, tx, accountID, ledger.EntryRelease, refund, "stream", streamID, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return refund, nil
}

// Credit adds amount to the account's available balance. Stream withdrawal
// credits additionally drain the sender's hold for the referenced stream.
func (s *Store) Credit(ctx context.Context, accountID string, amount float64, referenceType, referenceID string) error {
	if s == nil || s.db == nil {
		return errors.New("ledger store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if referenceType == "stream_withdrawal" {
		hold, err := lockHold(ctx, tx, referenceID)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
UPDATE accounts
SET held = held - $1, updated_at = $2
WHERE id = $3 AND held >= $1`, amount, now, hold.AccountID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return s.shortfallError(ctx, hold.AccountID, amount)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE stream_holds SET withdrawn = withdrawn + $1, updated_at = $2 WHERE stream_id = $3`,
			amount, now, referenceID); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `
UPDATE accounts
SET available = available + $1, updated_at = $2
WHERE id = $3`, amount, now, accountID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ledger.ErrAccountNotFound
	}

	if err := insertEntry(ctx, tx, accountID, ledger.EntryCredit, amount, referenceType, referenceID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// GetHold fetches the hold record for a stream.
func (s *Store) GetHold(ctx context.Context, streamID string) (*ledger.StreamHold, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT stream_id, account_id, principal, buffer, withdrawn, released, created_at, updated_at
FROM stream_holds
WHERE stream_id = $1
LIMIT 1`, streamID)
	return scanHold(row)
}

func (s *Store) shortfallError(ctx context.Context, accountID string, required float64) error {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	return &ledger.InsufficientFundsError{
		AccountID: accountID,
		Required:  required,
		Available: account.Available,
	}
}

func lockHold(ctx context.Context, tx *sql.Tx, streamID string) (*ledger.StreamHold, error) {
	row := tx.QueryRowContext(ctx, `
SELECT stream_id, account_id, principal, buffer, withdrawn, released, created_at, updated_at
FROM stream_holds
WHERE stream_id = $1
FOR UPDATE`, streamID)
	return scanHold(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(row rowScanner) (*ledger.StreamHold, error) {
	var hold ledger.StreamHold
	if err := row.Scan(&hold.StreamID, &hold.AccountID, &hold.Principal, &hold.Buffer,
		&hold.Withdrawn, &hold.Released, &hold.CreatedAt, &hold.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrHoldNotFound
		}
		return nil, err
	}
	hold.CreatedAt = hold.CreatedAt.UTC()
	hold.UpdatedAt = hold.UpdatedAt.UTC()
	return &hold, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, accountID, entryType string, amount float64, referenceType, referenceID string, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO ledger_entries (id, account_id, entry_type, amount, reference_type, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), accountID, entryType, amount, referenceType, referenceID, createdAt)
	return err
}
