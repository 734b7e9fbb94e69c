package storage

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"minibank/internal/models"
	"minibank/internal/money"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations. The pool is pinned
// to a single connection: sqlite has a single writer anyway, so one
// connection serializes every unit of work and makes ":memory:" databases
// shared across the whole process.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	// Bound lock waits so a stuck writer surfaces as an error instead of
	// blocking callers forever.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			date_of_birth DATETIME NOT NULL,
			admin BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			account_number TEXT UNIQUE NOT NULL,
			balance INTEGER NOT NULL,
			currency TEXT NOT NULL,
			country TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			user_id INTEGER NOT NULL REFERENCES users(id),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			from_account_id INTEGER NOT NULL REFERENCES accounts(id),
			to_account_id INTEGER NOT NULL REFERENCES accounts(id),
			amount INTEGER NOT NULL,
			idempotency_key TEXT UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser creates a new user. The admin flag is only ever set through the
// privileged creation paths (cmd/addadmin and the admin-only HTTP endpoint).
func (db *DB) CreateUser(username, email, passwordHash string, dateOfBirth time.Time, admin bool) (*models.User, error) {
	result, err := db.conn.Exec(
		"INSERT INTO users (username, email, password_hash, date_of_birth, admin) VALUES (?, ?, ?, ?, ?)",
		username, email, passwordHash, dateOfBirth, admin,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(id)
}

const userColumns = "id, username, email, password_hash, date_of_birth, admin, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DateOfBirth, &u.Admin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(id int64) (*models.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE id = ?", id,
	))
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE username = ?", username,
	))
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE email = ?", email,
	))
}

// ListUsers returns all users, for the admin portal.
func (db *DB) ListUsers() ([]models.User, error) {
	rows, err := db.conn.Query("SELECT " + userColumns + " FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DateOfBirth, &u.Admin, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

const accountColumns = "id, name, account_number, balance, currency, country, status, user_id, created_at"

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Name, &a.AccountNumber, &a.Balance, &a.Currency, &a.Country, &a.Status, &a.UserID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount opens a new account for a user with a generated account
// number. The initial balance must already be validated by the caller.
func (db *DB) CreateAccount(userID int64, name string, balance money.Amount, currency, country string) (*models.Account, error) {
	// Retry on the rare account-number collision.
	for attempt := 0; attempt < 5; attempt++ {
		number, err := newAccountNumber()
		if err != nil {
			return nil, err
		}
		result, err := db.conn.Exec(
			"INSERT INTO accounts (name, account_number, balance, currency, country, status, user_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
			name, number, int64(balance), currency, country, models.AccountStatusActive, userID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		return db.GetAccountByID(id)
	}
	return nil, errors.New("could not allocate a unique account number")
}

// GetAccountByID retrieves an account by ID.
func (db *DB) GetAccountByID(id int64) (*models.Account, error) {
	return scanAccount(db.conn.QueryRow(
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id,
	))
}

// GetAccountByNumber retrieves an account by its account number.
func (db *DB) GetAccountByNumber(number string) (*models.Account, error) {
	return scanAccount(db.conn.QueryRow(
		"SELECT "+accountColumns+" FROM accounts WHERE account_number = ?", number,
	))
}

// ListAccountsByOwner returns all accounts owned by a user.
func (db *DB) ListAccountsByOwner(userID int64) ([]models.Account, error) {
	rows, err := db.conn.Query(
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY id", userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.AccountNumber, &a.Balance, &a.Currency, &a.Country, &a.Status, &a.UserID, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CloseAccount marks an account closed. Accounts are never deleted.
func (db *DB) CloseAccount(id int64) error {
	result, err := db.conn.Exec(
		"UPDATE accounts SET status = ? WHERE id = ?", models.AccountStatusClosed, id,
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

// ListTransactionsBySourceOwner returns all transactions whose source account
// belongs to the given user, newest first. This backs the user portal's
// transaction history.
func (db *DB) ListTransactionsBySourceOwner(userID int64) ([]models.Transaction, error) {
	rows, err := db.conn.Query(`
		SELECT t.id, t.from_account_id, t.to_account_id, fa.account_number, ta.account_number, t.amount, t.created_at
		FROM transactions t
		JOIN accounts fa ON t.from_account_id = fa.id
		JOIN accounts ta ON t.to_account_id = ta.id
		WHERE fa.user_id = ?
		ORDER BY t.created_at DESC, t.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.FromAccount, &t.ToAccount, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(token string, userID int64, expiresAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt,
	)
	return err
}

// ValidateSession checks if a session token is valid and returns the
// associated user, including the admin flag.
func (db *DB) ValidateSession(token string) (*models.User, error) {
	return scanUser(db.conn.QueryRow(`
		SELECT u.id, u.username, u.email, u.password_hash, u.date_of_birth, u.admin, u.created_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP
	`, token))
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (db *DB) CleanExpiredSessions() error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at <= CURRENT_TIMESTAMP")
	return err
}

// newAccountNumber generates a random 12-digit account number.
func newAccountNumber() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	for i := range b {
		b[i] = '0' + b[i]%10
	}
	return string(b), nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text;
	// matching on it avoids depending on driver internals.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
