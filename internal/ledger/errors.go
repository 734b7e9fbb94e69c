// Package ledger implements the transfer engine: it validates transfer
// requests and applies them to account balances and the transaction log as
// one atomic unit.
package ledger

import "errors"

// Domain errors, mapped to HTTP status codes at the handler boundary.
var (
	// ErrAccountNotFound means the source or destination account number
	// does not resolve to an account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnauthorized means the caller does not own the source account.
	// Only the source side is ownership-checked: crediting any valid
	// destination account is allowed.
	ErrUnauthorized = errors.New("source account does not belong to caller")

	// ErrSelfTransfer means source and destination are the same account.
	ErrSelfTransfer = errors.New("source and destination accounts are the same")

	// ErrInvalidAmount means the transfer amount is not positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientFunds means the source balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrIdempotencyMismatch means the idempotency key was already used
	// for a transfer with different accounts or a different amount. The
	// recorded transfer is not re-applied and nothing is mutated.
	ErrIdempotencyMismatch = errors.New("idempotency key already used for a different transfer")

	// ErrStoreUnavailable wraps persistence failures. The transfer has been
	// fully rolled back and the caller may retry.
	ErrStoreUnavailable = errors.New("storage unavailable")
)
