package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server needs
type Config struct {
	Port               string
	DatabaseURL        string // empty selects the in-memory store
	JWTSecret          string
	WebhookSecret      string // shared with the payment gateway for callback signatures
	WithdrawWindow     time.Duration
	SweepInterval      time.Duration
	MaxConflictRetries int
	LogLevel           string
	CORSOrigins        []string
}

// Defaults used when a variable is unset
const (
	DefaultPort               = "8080"
	DefaultWithdrawWindow     = 5 * time.Minute
	DefaultSweepInterval      = 30 * time.Second
	DefaultMaxConflictRetries = 3
	DefaultLogLevel           = "info"
)

// Load reads the optional .env file at path into the environment and builds a Config from it.
// A missing file is not an error; variables already set in the environment win.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", DefaultPort),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
	}

	var err error
	if cfg.WithdrawWindow, err = getDuration("WITHDRAW_WINDOW", DefaultWithdrawWindow); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.MaxConflictRetries, err = getInt("MAX_CONFLICT_RETRIES", DefaultMaxConflictRetries); err != nil {
		return nil, err
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("PAYMENT_WEBHOOK_SECRET must be set")
	}
	return cfg, nil
}

// Addr returns the listen address for Port
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}
