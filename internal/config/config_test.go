package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tests here mutate the process environment and must not run in parallel

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "DATABASE_URL", "JWT_SECRET", "PAYMENT_WEBHOOK_SECRET", "WITHDRAW_WINDOW", "SWEEP_INTERVAL", "MAX_CONFLICT_RETRIES", "LOG_LEVEL", "CORS_ORIGINS"} {
		// Setenv restores the original value on cleanup; godotenv skips keys that exist even when empty
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "hook")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr())
	require.Empty(t, cfg.DatabaseURL)
	require.Equal(t, DefaultWithdrawWindow, cfg.WithdrawWindow)
	require.Equal(t, DefaultSweepInterval, cfg.SweepInterval)
	require.Equal(t, DefaultMaxConflictRetries, cfg.MaxConflictRetries)
	require.Equal(t, "hook", cfg.WebhookSecret)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.CORSOrigins)
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=file-secret\nPAYMENT_WEBHOOK_SECRET=file-hook\nPORT=9090\nWITHDRAW_WINDOW=90s\nCORS_ORIGINS=http://a.test, http://b.test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// variables already in the environment win over the file
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "file-secret", cfg.JWTSecret)
	require.Equal(t, "file-hook", cfg.WebhookSecret)
	require.Equal(t, ":7070", cfg.Addr())
	require.Equal(t, 90*time.Second, cfg.WithdrawWindow)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing_secret", env: map[string]string{"PAYMENT_WEBHOOK_SECRET": "h"}},
		{name: "missing_webhook_secret", env: map[string]string{"JWT_SECRET": "s"}},
		{name: "bad_window", env: map[string]string{"JWT_SECRET": "s", "PAYMENT_WEBHOOK_SECRET": "h", "WITHDRAW_WINDOW": "soon"}},
		{name: "negative_sweep", env: map[string]string{"JWT_SECRET": "s", "PAYMENT_WEBHOOK_SECRET": "h", "SWEEP_INTERVAL": "-1s"}},
		{name: "bad_retries", env: map[string]string{"JWT_SECRET": "s", "PAYMENT_WEBHOOK_SECRET": "h", "MAX_CONFLICT_RETRIES": "many"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.Error(t, err)
		})
	}
}
