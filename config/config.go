package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// CompetitionTimezone is the fixed civil timezone every lifecycle
	// comparison happens in. Stored timestamps remain UTC; conversion is
	// done at read/compute time, never at write time.
	CompetitionTimezone *time.Location

	// ReconcileInterval is how often the background sweep re-derives
	// competition statuses.
	ReconcileInterval time.Duration

	// Cloudflare R2 snapshot archiving. Optional: when AccountID is empty
	// the archiver is disabled and finalization skips the upload step.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

const (
	defaultTimezone          = "America/Sao_Paulo"
	defaultReconcileInterval = 30 * time.Second
)

// Load reads configuration from environment variables. A .env file is
// loaded first when present (local development); its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	tzName := os.Getenv("COMPETITION_TIMEZONE")
	if tzName == "" {
		tzName = defaultTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPETITION_TIMEZONE %q: %w", tzName, err)
	}

	interval := defaultReconcileInterval
	if intervalStr := os.Getenv("RECONCILE_INTERVAL"); intervalStr != "" {
		interval, err = time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
		}
		if interval < time.Second {
			return nil, fmt.Errorf("RECONCILE_INTERVAL must be at least 1s, got %s", interval)
		}
	}

	cfg := &Config{
		DatabaseURL:         dbURL,
		JWTSecretKey:        jwtKey,
		ServerPort:          port,
		CompetitionTimezone: loc,
		ReconcileInterval:   interval,
		R2AccountID:         os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:       os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:   os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:        os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:     os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}
