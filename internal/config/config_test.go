package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
	require.Equal(t, 30, cfg.AuditRetentionDays)
	require.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUDIT_RETENTION_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.ServerPort)
	require.Equal(t, 7, cfg.AuditRetentionDays)
	require.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadSweepSchedule(t *testing.T) {
	t.Setenv("AUDIT_SWEEP_SCHEDULE", "every now and then")
	_, err := Load()
	require.Error(t, err)
}
