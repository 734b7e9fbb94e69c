package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"minibank/internal/models"
	"minibank/internal/money"

	"github.com/google/uuid"
)

// Unit is a single atomic unit of work over the ledger tables. Everything
// done through a Unit either commits together or rolls back together.
// Balance updates are reachable only through a Unit, so they can never
// bypass the transfer engine's validation.
type Unit struct {
	tx   *sql.Tx
	done bool
}

// BeginUnit starts a new unit of work.
func (db *DB) BeginUnit(ctx context.Context) (*Unit, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Unit{tx: tx}, nil
}

// Commit makes all writes in the unit durable.
func (u *Unit) Commit() error {
	u.done = true
	return u.tx.Commit()
}

// Rollback discards the unit. Safe to call after Commit.
func (u *Unit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback()
}

// AccountByNumber reads an account inside the unit.
func (u *Unit) AccountByNumber(number string) (*models.Account, error) {
	return scanAccount(u.tx.QueryRow(
		"SELECT "+accountColumns+" FROM accounts WHERE account_number = ?", number,
	))
}

// UpdateBalance overwrites an account's balance inside the unit.
func (u *Unit) UpdateBalance(accountID int64, balance money.Amount) error {
	result, err := u.tx.Exec(
		"UPDATE accounts SET balance = ? WHERE id = ?", int64(balance), accountID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTransaction records one completed transfer inside the unit. The
// record is write-once; nothing ever updates or deletes it.
func (u *Unit) AppendTransaction(from, to *models.Account, amount money.Amount, idempotencyKey string) (*models.Transaction, error) {
	t := &models.Transaction{
		ID:            uuid.NewString(),
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		FromAccount:   from.AccountNumber,
		ToAccount:     to.AccountNumber,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}

	var key any
	if idempotencyKey != "" {
		key = idempotencyKey
	}
	_, err := u.tx.Exec(
		"INSERT INTO transactions (id, from_account_id, to_account_id, amount, idempotency_key, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		t.ID, t.FromAccountID, t.ToAccountID, int64(t.Amount), key, t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TransactionByKey looks up a previously recorded transfer by its
// idempotency key, so a retried request can be answered without
// re-applying the transfer.
func (u *Unit) TransactionByKey(idempotencyKey string) (*models.Transaction, error) {
	row := u.tx.QueryRow(`
		SELECT t.id, t.from_account_id, t.to_account_id, fa.account_number, ta.account_number, t.amount, t.created_at
		FROM transactions t
		JOIN accounts fa ON t.from_account_id = fa.id
		JOIN accounts ta ON t.to_account_id = ta.id
		WHERE t.idempotency_key = ?
	`, idempotencyKey)

	var t models.Transaction
	err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.FromAccount, &t.ToAccount, &t.Amount, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
