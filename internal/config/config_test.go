package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderledger/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabaseDSN)
	assert.Empty(t, cfg.KafkaBroker)
	assert.Equal(t, "order-status-changed", cfg.StatusTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)

	at := cfg.AutoTransition
	assert.True(t, at.Enabled)
	assert.False(t, at.RespectBusinessHours)
	assert.Equal(t, 8, at.BusinessStartHour)
	assert.Equal(t, 22, at.BusinessEndHour)
	assert.Equal(t, time.Minute, at.SweepInterval)
	assert.Equal(t, 2*time.Hour, at.DelayFor(domain.ConfirmedToProcessing))
	assert.Equal(t, 24*time.Hour, at.DelayFor(domain.ProcessingToShipped))
	assert.Equal(t, 72*time.Hour, at.DelayFor(domain.ShippedToDelivered))
	assert.Equal(t, 168*time.Hour, at.DelayFor(domain.PendingToCancelled))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_DATABASE_DSN", "postgres://localhost/ledger")
	t.Setenv("KAFKA_BROKER", "localhost:9092")
	t.Setenv("AUTO_TRANSITION_ENABLED", "false")
	t.Setenv("AUTO_TRANSITION_RESPECT_BUSINESS_HOURS", "true")
	t.Setenv("AUTO_TRANSITION_BUSINESS_START_HOUR", "9")
	t.Setenv("AUTO_TRANSITION_BUSINESS_END_HOUR", "18")
	t.Setenv("AUTO_TRANSITION_SWEEP_INTERVAL", "30s")
	t.Setenv("AUTO_TRANSITION_DELAY_PENDING_TO_CANCELLED", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/ledger", cfg.DatabaseDSN)
	assert.Equal(t, "localhost:9092", cfg.KafkaBroker)

	at := cfg.AutoTransition
	assert.False(t, at.Enabled)
	assert.True(t, at.RespectBusinessHours)
	assert.Equal(t, 9, at.BusinessStartHour)
	assert.Equal(t, 18, at.BusinessEndHour)
	assert.Equal(t, 30*time.Second, at.SweepInterval)
	assert.Equal(t, 48*time.Hour, at.DelayFor(domain.PendingToCancelled))
	// Unset delays keep their defaults.
	assert.Equal(t, 2*time.Hour, at.DelayFor(domain.ConfirmedToProcessing))
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad bool", "AUTO_TRANSITION_ENABLED", "yep"},
		{"bad int", "AUTO_TRANSITION_BUSINESS_START_HOUR", "nine"},
		{"bad duration", "AUTO_TRANSITION_SWEEP_INTERVAL", "soon"},
		{"hour out of range", "AUTO_TRANSITION_BUSINESS_END_HOUR", "24"},
		{"negative interval", "AUTO_TRANSITION_SWEEP_INTERVAL", "-1m"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyBusinessWindow(t *testing.T) {
	t.Setenv("AUTO_TRANSITION_BUSINESS_START_HOUR", "18")
	t.Setenv("AUTO_TRANSITION_BUSINESS_END_HOUR", "9")

	_, err := Load()
	assert.Error(t, err)
}

func TestDelayFor_FallsBackToDefault(t *testing.T) {
	at := AutoTransitionConfig{}
	assert.Equal(t, DefaultDelay, at.DelayFor(domain.ConfirmedToProcessing))
}
