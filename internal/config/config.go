// Package config loads accreditd settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config represents daemon configuration loaded from environment variables.
type Config struct {
	Addr  string
	Store string

	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	WebhookSecret    string
	ProcessorAPIKey  string
	ProcessorBaseURL string

	AnnualPriceIDs      []string
	BoardReviewPriceIDs []string

	CertBucket   string
	CertRegion   string
	CertEndpoint string

	TxMaxAttempts     int
	TierSweepInterval time.Duration

	LogLevel slog.Level
	LogDev   bool

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Addr:                getEnv("ACCREDIT_ADDR", ":8080"),
		Store:               strings.ToLower(getEnv("ACCREDIT_STORE", StoreMemory)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDatabase:       getEnv("MONGO_DATABASE", "accredit"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		ProcessorAPIKey:     os.Getenv("PROCESSOR_API_KEY"),
		ProcessorBaseURL:    os.Getenv("PROCESSOR_BASE_URL"),
		AnnualPriceIDs:      getEnvList("PLAN_ANNUAL_PRICE_IDS"),
		BoardReviewPriceIDs: getEnvList("PLAN_BOARD_REVIEW_PRICE_IDS"),
		CertBucket:          os.Getenv("CERT_S3_BUCKET"),
		CertRegion:          getEnv("CERT_S3_REGION", "us-east-1"),
		CertEndpoint:        os.Getenv("CERT_S3_ENDPOINT"),
		TxMaxAttempts:       getEnvInt("TX_MAX_ATTEMPTS", 4),
		TierSweepInterval:   getEnvDuration("TIER_SWEEP_INTERVAL", 15*time.Minute),
		LogDev:              getEnvBool("LOG_DEV"),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	default:
		return nil, fmt.Errorf("ACCREDIT_STORE: unknown store %q", cfg.Store)
	}

	if cfg.TxMaxAttempts < 1 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
