package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config carries everything the server reads from the environment. Secrets
// live here and nowhere else; packages that need them take them explicitly
// instead of reading globals.
type Config struct {
	Port string

	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Auth struct {
		AccessSecret  []byte
		RefreshSecret []byte
		AccessTTL     time.Duration
		RefreshTTL    time.Duration
		Issuer        string
	}
}

// Load reads the environment (godotenv has already merged .env) and
// validates that the token secrets are present.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Port = getEnv("PORT", "8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Auth.AccessSecret = []byte(os.Getenv("ACCESS_TOKEN_SECRET"))
	cfg.Auth.RefreshSecret = []byte(os.Getenv("REFRESH_TOKEN_SECRET"))
	if len(cfg.Auth.AccessSecret) == 0 || len(cfg.Auth.RefreshSecret) == 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}

	cfg.Auth.AccessTTL = getEnvDuration("ACCESS_TOKEN_TTL_MINUTES", 15) * time.Minute
	cfg.Auth.RefreshTTL = getEnvDuration("REFRESH_TOKEN_TTL_HOURS", 24*10) * time.Hour
	cfg.Auth.Issuer = getEnv("TOKEN_ISSUER", "clipstream")

	return cfg, nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Database.Host, c.Database.User, c.Database.Password,
		c.Database.Name, c.Database.Port, c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("WARNING: invalid %s=%q, using default %d", key, raw, fallback)
		return time.Duration(fallback)
	}
	return time.Duration(n)
}
