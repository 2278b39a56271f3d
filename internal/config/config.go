package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

const PROD_STRING = "prod"

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string

	StoreDriver string
	DBDSN       string

	JWTSecret         string
	JWTAccessTokenTTL time.Duration

	VenueLocation    *time.Location
	SlotGranularity  int // minutes
	DefaultOpenTime  string
	DefaultCloseTime string

	HoldTTL               time.Duration
	HoldGraceWindow       time.Duration
	HoldSweepInterval     time.Duration
	PaymentIdempotencyTTL time.Duration

	RedisAddr            string
	RedisPassword        string
	AvailabilityCacheTTL time.Duration

	KafkaBrokers string
	KafkaTopic   string

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	cfg := &Config{}
	var err error

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Store driver: postgres in production, memory allowed for local runs
	cfg.StoreDriver = getEnv("STORE_DRIVER", StoreDriverPostgres)
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DBDSN = os.Getenv("DB_DSN")
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required")
		}
	case StoreDriverMemory:
		if cfg.IsProduction {
			return nil, fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER: %s", cfg.StoreDriver)
	}

	// JWT secret is required for verifying customer tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	// Venue timezone drives weekday and peak-window resolution
	tz := getEnv("VENUE_TIMEZONE", "UTC")
	cfg.VenueLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid VENUE_TIMEZONE: %w", err)
	}

	if cfg.SlotGranularity, err = getEnvAsInt("SLOT_GRANULARITY", 30); err != nil {
		return nil, err
	}
	if cfg.SlotGranularity <= 0 || timeutil.MinutesInDay%cfg.SlotGranularity != 0 {
		return nil, fmt.Errorf("SLOT_GRANULARITY must divide a day evenly (got %d)", cfg.SlotGranularity)
	}

	cfg.DefaultOpenTime = getEnv("DEFAULT_OPEN_TIME", "08:00")
	cfg.DefaultCloseTime = getEnv("DEFAULT_CLOSE_TIME", "22:00")
	openMin, err := timeutil.ParseTimeKey(cfg.DefaultOpenTime)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_OPEN_TIME: %w", err)
	}
	closeMin, err := timeutil.ParseTimeKey(cfg.DefaultCloseTime)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_CLOSE_TIME: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("DEFAULT_CLOSE_TIME must be after DEFAULT_OPEN_TIME")
	}

	// Hold lifecycle: production keeps a 5 minute TTL, test environments shorten it
	defaultTTL := 5 * time.Minute
	if !cfg.IsProduction {
		defaultTTL = 2 * time.Minute
	}
	if cfg.HoldTTL, err = getEnvAsDuration("HOLD_TTL", defaultTTL); err != nil {
		return nil, err
	}
	if cfg.HoldGraceWindow, err = getEnvAsDuration("HOLD_GRACE_WINDOW", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.HoldSweepInterval, err = getEnvAsDuration("HOLD_SWEEP_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PaymentIdempotencyTTL, err = getEnvAsDuration("PAYMENT_IDEMPOTENCY_BUCKET", 10*time.Second); err != nil {
		return nil, err
	}

	// Optional availability cache
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.AvailabilityCacheTTL, err = getEnvAsDuration("AVAILABILITY_CACHE_TTL", 15*time.Second); err != nil {
		return nil, err
	}

	// Optional event channel
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", "")
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "court-booking.events")

	// Payment gateway; without a key the in-memory gateway is used outside production
	cfg.StripeSecretKey = getEnv("STRIPE_SECRET_KEY", "")
	cfg.StripeWebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", "")
	if cfg.IsProduction && cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required in production")
	}
	cfg.PaymentCurrency = strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd"))

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses a time.Duration (e.g. "15m", "1h").
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("env %s must be positive (got %s)", key, valStr)
	}

	return val, nil
}
