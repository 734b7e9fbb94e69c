package handlers

import (
	"errors"
	"net/http"

	"minibank/internal/ledger"
	"minibank/internal/models"
	"minibank/internal/money"
	"minibank/internal/storage"

	"github.com/go-chi/chi/v5"
)

type createAccountRequest struct {
	Name     string        `json:"name"`
	Balance  *money.Amount `json:"balance"`
	Currency string        `json:"currency"`
	Country  string        `json:"country"`
}

// ListAccounts returns all accounts owned by the caller.
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	accounts, err := h.db.ListAccountsByOwner(user.ID)
	if err != nil {
		h.internalError(w, "list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// CreateAccount opens a new account owned by the caller.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Balance == nil || req.Currency == "" || req.Country == "" {
		respondError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if *req.Balance < 0 {
		respondError(w, http.StatusBadRequest, "initial balance must not be negative")
		return
	}

	account, err := h.db.CreateAccount(user.ID, req.Name, *req.Balance, req.Currency, req.Country)
	if err != nil {
		h.internalError(w, "create account", err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

// CloseAccount transitions the caller's account to the closed status.
// Accounts are never deleted.
func (h *Handlers) CloseAccount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	number := chi.URLParam(r, "number")

	account, err := h.db.GetAccountByNumber(number)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		h.internalError(w, "get account", err)
		return
	}
	if account.UserID != user.ID {
		respondError(w, http.StatusForbidden, "account does not belong to caller")
		return
	}

	if err := h.db.CloseAccount(account.ID); err != nil {
		h.internalError(w, "close account", err)
		return
	}

	account, err = h.db.GetAccountByID(account.ID)
	if err != nil {
		h.internalError(w, "get account", err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

type transferRequest struct {
	FromAccountNumber string        `json:"from_account_number"`
	ToAccountNumber   string        `json:"to_account_number"`
	Amount            *money.Amount `json:"amount"`
}

// Transfer validates the request at the boundary and hands it to the
// transfer engine. An optional Idempotency-Key header makes retries safe.
func (h *Handlers) Transfer(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FromAccountNumber == "" || req.ToAccountNumber == "" || req.Amount == nil {
		respondError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	record, err := h.ledger.Transfer(r.Context(), user.ID,
		req.FromAccountNumber, req.ToAccountNumber, *req.Amount,
		r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondTransferError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":     "transfer successful",
		"transaction": record,
	})
}

// respondTransferError maps each ledger error to its own status code; no
// failure kind is collapsed into another.
func (h *Handlers) respondTransferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrSelfTransfer), errors.Is(err, ledger.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrIdempotencyMismatch):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrStoreUnavailable):
		h.logger.Error("transfer store failure", "error", err)
		respondError(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		h.internalError(w, "transfer", err)
	}
}
