package models

import (
	"time"

	"minibank/internal/money"
)

// Account status values. Accounts are never deleted, only closed.
const (
	AccountStatusActive = "active"
	AccountStatusClosed = "closed"
)

// User represents a registered customer or administrator.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account represents a bank account owned by exactly one user.
type Account struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	AccountNumber string       `json:"account_number"`
	Balance       money.Amount `json:"balance"`
	Currency      string       `json:"currency"`
	Country       string       `json:"country"`
	Status        string       `json:"status"`
	UserID        int64        `json:"user_id"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Transaction is one completed transfer between two accounts. Records are
// append-only; they are never updated or deleted.
type Transaction struct {
	ID            string       `json:"id"`
	FromAccountID int64        `json:"from_account_id"`
	ToAccountID   int64        `json:"to_account_id"`
	FromAccount   string       `json:"from_account"`
	ToAccount     string       `json:"to_account"`
	Amount        money.Amount `json:"amount"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Session is a bearer-token login session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
