package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minibank/internal/auth"
	"minibank/internal/config"
	"minibank/internal/handlers"
	"minibank/internal/ledger"
	"minibank/internal/storage"
)

const sessionCleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	addr := flag.String("addr", cfg.Addr, "Listen address")
	dbPath := flag.String("db", cfg.DBPath, "Path to database file")
	flag.Parse()

	db, err := storage.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := bootstrapAdmin(db, cfg); err != nil {
		return err
	}

	h := handlers.NewHandlers(db, ledger.New(db), slog.Default())
	srv := &http.Server{
		Addr:    *addr,
		Handler: h.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanSessions(ctx, db)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", *addr, "db", *dbPath, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// bootstrapAdmin creates the initial admin user from ADMIN_USER /
// ADMIN_PASSWORD when the account does not exist yet. This is the offline
// privileged creation path for fresh deployments; cmd/addadmin covers the
// interactive one.
func bootstrapAdmin(db *storage.DB, cfg *config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, err := db.GetUserByUsername(cfg.AdminUser); err == nil {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	dob := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := db.CreateUser(cfg.AdminUser, cfg.AdminEmail, hash, dob, true); err != nil {
		return err
	}
	slog.Info("bootstrap admin created", "username", cfg.AdminUser)
	return nil
}

func cleanSessions(ctx context.Context, db *storage.DB) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.CleanExpiredSessions(); err != nil {
				slog.Error("clean expired sessions", "error", err)
			}
		}
	}
}
