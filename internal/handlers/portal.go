package handlers

import (
	"net/http"

	"minibank/internal/models"
)

// UserPortal returns the caller's profile, accounts and transaction
// history. History covers transactions where one of the caller's accounts
// is the source.
func (h *Handlers) UserPortal(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	accounts, err := h.db.ListAccountsByOwner(user.ID)
	if err != nil {
		h.internalError(w, "list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}

	transactions, err := h.db.ListTransactionsBySourceOwner(user.ID)
	if err != nil {
		h.internalError(w, "list transactions", err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"accounts":     accounts,
		"transactions": transactions,
	})
}

// AdminPortal lists every registered user. Admin only.
func (h *Handlers) AdminPortal(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		h.internalError(w, "list users", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}
