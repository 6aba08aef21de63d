package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the server.
type Config struct {
	HTTPAddr           string
	DatabaseURL        string
	GatewayToken       string
	Env                string
	MaxOpenTimers      int
	ClaimRatePerMinute int
	SweepInterval      time.Duration
	ResolveGrace       time.Duration
	NotifyChannel      string
}

// Load reads .env if present, then the environment, with defaults for
// anything unset.
func Load() (Config, error) {
	_ = godotenv.Load()

	maxOpen, err := getInt("MAX_OPEN_TIMERS", 1)
	if err != nil {
		return Config{}, err
	}
	claimRate, err := getInt("CLAIM_RATE_PER_MINUTE", 6)
	if err != nil {
		return Config{}, err
	}
	sweep, err := getDuration("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	grace, err := getDuration("RESOLVE_GRACE", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "cardclash.db"),
		GatewayToken:       os.Getenv("GATEWAY_TOKEN"),
		Env:                getEnv("APP_ENV", "development"),
		MaxOpenTimers:      maxOpen,
		ClaimRatePerMinute: claimRate,
		SweepInterval:      sweep,
		ResolveGrace:       grace,
		NotifyChannel:      getEnv("NOTIFY_CHANNEL", "cardclash_events"),
	}, nil
}

func (c Config) Production() bool { return c.Env == "production" }

// getEnv returns fallback when the variable is unset or empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
