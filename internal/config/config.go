package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, resolved once at startup. Nothing
// in the engines reads the environment directly; the admin allowlist in
// particular is carried as an explicit value so the core stays testable
// without environment mutation.
type Config struct {
	Env         string
	Port        string
	DatabaseURL string // empty selects the local sqlite file
	JWTSecret   string
	AdminEmails []string
	Debug       bool
}

// Load reads configuration from a .env file (if present) and the process
// environment.
func Load() *Config {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   getEnv("JWT_SECRET", "tickertap-secret-key"),
		Debug:       os.Getenv("DEBUG") == "true",
	}

	if raw := os.Getenv("ADMIN_EMAILS"); raw != "" {
		for _, email := range strings.Split(raw, ",") {
			email = strings.ToLower(strings.TrimSpace(email))
			if email != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, email)
			}
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
