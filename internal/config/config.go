package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr       = ":8080"
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultRateBurst  = 20
	defaultRatePerSec = 10
)

// Config holds everything the process needs at start. The signing secret
// is the operational hazard: rotating it invalidates every outstanding
// token at once.
type Config struct {
	Addr string

	// SigningSecret signs and verifies every token.
	SigningSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// PostgresDSN is optional; without it the API runs against in-memory
	// state (dev only — logout does not survive the process, and
	// multi-instance deployments require the shared store).
	PostgresDSN string

	RateBurst  int
	RatePerSec int
}

// Load reads configuration from the environment, with an optional .env
// file merged in first. Missing secret is a startup error.
func Load() (Config, error) {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := Config{
		Addr:          envOr("AUTHGATE_ADDR", defaultAddr),
		SigningSecret: strings.TrimSpace(os.Getenv("AUTHGATE_SECRET")),
		Issuer:        envOr("AUTHGATE_ISSUER", "authgate"),
		AccessTTL:     defaultAccessTTL,
		RefreshTTL:    defaultRefreshTTL,
		PostgresDSN:   strings.TrimSpace(os.Getenv("AUTHGATE_PG_DSN")),
		RateBurst:     defaultRateBurst,
		RatePerSec:    defaultRatePerSec,
	}

	if cfg.SigningSecret == "" {
		return Config{}, errors.New("config: AUTHGATE_SECRET is required")
	}

	var err error
	if cfg.AccessTTL, err = envDuration("AUTHGATE_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("AUTHGATE_REFRESH_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = envInt("AUTHGATE_RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = envInt("AUTHGATE_RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return Config{}, errors.New("config: access TTL must be shorter than refresh TTL")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return v, nil
}
