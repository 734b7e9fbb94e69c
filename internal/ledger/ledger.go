package ledger

import (
	"context"
	"errors"
	"fmt"

	"minibank/internal/models"
	"minibank/internal/money"
	"minibank/internal/storage"
)

// Ledger validates and applies money transfers. All reads, both balance
// writes and the transaction-log append happen in one storage unit of work,
// so a concurrent reader sees either the pre-transfer or the post-transfer
// state, never a half-applied one.
type Ledger struct {
	db *storage.DB
}

// New creates a transfer engine on top of the given store.
func New(db *storage.DB) *Ledger {
	return &Ledger{db: db}
}

// Transfer moves amount from the caller's account to the destination
// account and records the transaction. Preconditions are checked in a fixed
// order and the first failure wins; nothing is mutated on any failure.
//
// If idempotencyKey is non-empty and a transfer with that key was already
// recorded, the recorded transaction is returned without re-applying it.
func (l *Ledger) Transfer(ctx context.Context, callerID int64, fromNumber, toNumber string, amount money.Amount, idempotencyKey string) (*models.Transaction, error) {
	unit, err := l.db.BeginUnit(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer unit.Rollback()

	if idempotencyKey != "" {
		prior, err := unit.TransactionByKey(idempotencyKey)
		switch {
		case err == nil:
			// A replay must describe the recorded transfer; the same key
			// with different parameters is a client bug, not a retry.
			if prior.FromAccount != fromNumber || prior.ToAccount != toNumber || prior.Amount != amount {
				return nil, ErrIdempotencyMismatch
			}
			return prior, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, storeErr("idempotency lookup", err)
		}
	}

	from, err := unit.AccountByNumber(fromNumber)
	if err != nil {
		return nil, lookupErr(err)
	}
	to, err := unit.AccountByNumber(toNumber)
	if err != nil {
		return nil, lookupErr(err)
	}

	if from.UserID != callerID {
		return nil, ErrUnauthorized
	}
	if from.ID == to.ID {
		return nil, ErrSelfTransfer
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if from.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	from.Balance -= amount
	to.Balance += amount

	// Apply balance writes in ascending account-ID order so two transfers
	// touching the same pair in opposite directions never deadlock.
	first, second := from, to
	if second.ID < first.ID {
		first, second = second, first
	}
	if err := unit.UpdateBalance(first.ID, first.Balance); err != nil {
		return nil, storeErr("debit/credit", err)
	}
	if err := unit.UpdateBalance(second.ID, second.Balance); err != nil {
		return nil, storeErr("debit/credit", err)
	}

	record, err := unit.AppendTransaction(from, to, amount, idempotencyKey)
	if err != nil {
		return nil, storeErr("append transaction", err)
	}

	if err := unit.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}
	return record, nil
}

func lookupErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrAccountNotFound
	}
	return storeErr("account lookup", err)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
