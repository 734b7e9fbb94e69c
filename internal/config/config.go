// Package config loads runtime configuration from the environment. The
// resulting struct is passed explicitly to the components that need it;
// there is no process-wide configuration singleton.
package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the server and CLI tools.
type Config struct {
	Addr          string
	DBPath        string
	Env           string
	AdminUser     string
	AdminPassword string
	AdminEmail    string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment only")
	}

	return &Config{
		Addr:          ":" + getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "minibank.db"),
		Env:           getEnv("ENV", "development"),
		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@localhost"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
