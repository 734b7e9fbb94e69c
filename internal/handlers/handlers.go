// Package handlers exposes the HTTP API and the access-control gate in
// front of the ledger. It contains no ledger logic: requests are parsed
// and validated here, then handed to the transfer engine or the store.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"minibank/internal/auth"
	"minibank/internal/ledger"
	"minibank/internal/models"
	"minibank/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// TokenTTL is how long a login session stays valid.
	TokenTTL = 24 * time.Hour
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db     *storage.DB
	ledger *ledger.Ledger
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, l *ledger.Ledger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{db: db, ledger: l, logger: logger}
}

// Routes assembles the full API router.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/logout", h.Logout)
		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.CreateAccount)
		r.Post("/accounts/{number}/close", h.CloseAccount)
		r.Post("/transactions", h.Transfer)
		r.Get("/user_portal", h.UserPortal)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/admin_portal", h.AdminPortal)
			r.Post("/create_admin", h.CreateAdmin)
		})
	})

	return r
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// Authenticate resolves the bearer token to a user or rejects with 401.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := h.db.ValidateSession(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin callers with 403. Must run after
// Authenticate.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r)
		if user == nil || !user.Admin {
			respondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

const dateLayout = "2006-01-02"

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
}

// validate parses the date of birth and enforces the registration rules.
func (req *registerRequest) validate(now time.Time) (time.Time, string) {
	if req.Username == "" || req.Password == "" || req.Email == "" || req.DateOfBirth == "" {
		return time.Time{}, "missing required fields"
	}
	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		return time.Time{}, "invalid date format, use YYYY-MM-DD"
	}
	if dob.AddDate(18, 0, 0).After(now) {
		return time.Time{}, "must be at least 18 years old to register"
	}
	return dob, ""
}

// Register creates a regular (non-admin) user.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	h.createUser(w, r, false)
}

// CreateAdmin creates a user with the admin flag set. Reachable only
// through the admin-gated route group.
func (h *Handlers) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	h.createUser(w, r, true)
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request, admin bool) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dob, msg := req.validate(time.Now())
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.db.GetUserByUsername(req.Username); err == nil {
		respondError(w, http.StatusBadRequest, "username already exists")
		return
	}
	if _, err := h.db.GetUserByEmail(req.Email); err == nil {
		respondError(w, http.StatusBadRequest, "email already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalError(w, "hash password", err)
		return
	}

	user, err := h.db.CreateUser(req.Username, req.Email, hash, dob, admin)
	if err != nil {
		h.internalError(w, "create user", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "user registered successfully",
		"user":    user,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and issues a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	user, err := h.db.GetUserByUsername(req.Username)
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.internalError(w, "generate session token", err)
		return
	}

	if err := h.db.CreateSession(token, user.ID, time.Now().UTC().Add(TokenTTL)); err != nil {
		h.internalError(w, "create session", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"token":   token,
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"admin":    user.Admin,
		},
	})
}

// Logout revokes the caller's session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.db.DeleteSession(token); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, "error", err)
	respondError(w, http.StatusInternalServerError, "internal server error")
}
