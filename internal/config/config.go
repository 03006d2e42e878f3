// Package config loads service configuration from the environment once at
// startup. Components receive the loaded value explicitly; nothing reads
// the environment after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"orderledger/internal/domain"
)

const (
	ServiceName    = "order-ledger-service"
	ServiceVersion = "0.1.0"
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

// Defaults for the auto-transition delays, per transition type.
var defaultDelays = map[domain.TransitionType]time.Duration{
	domain.ConfirmedToProcessing: 2 * time.Hour,
	domain.ProcessingToShipped:   24 * time.Hour,
	domain.ShippedToDelivered:    72 * time.Hour,
	domain.PendingToCancelled:    168 * time.Hour,
}

// DefaultDelay applies to any transition type without a configured delay.
const DefaultDelay = time.Hour

type Config struct {
	// DatabaseDSN selects the Postgres store; empty runs on the in-memory
	// store.
	DatabaseDSN string

	// KafkaBroker enables the Kafka status-change notifier; empty falls
	// back to log-only notifications.
	KafkaBroker string
	StatusTopic string

	OtelEndpoint   string
	OtelAuthHeader string

	HTTPAddr string

	AutoTransition AutoTransitionConfig
}

// AutoTransitionConfig drives the scheduler and the sweep executor.
type AutoTransitionConfig struct {
	Enabled                    bool
	RespectBusinessHours       bool
	BusinessStartHour          int
	BusinessEndHour            int
	NotifyCustomerOnTransition bool
	SweepInterval              time.Duration
	Delays                     map[domain.TransitionType]time.Duration
}

// DelayFor returns the configured delay for a transition type, falling back
// to DefaultDelay for unconfigured types.
func (c AutoTransitionConfig) DelayFor(tt domain.TransitionType) time.Duration {
	if d, ok := c.Delays[tt]; ok {
		return d
	}
	return DefaultDelay
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN:    os.Getenv("LEDGER_DATABASE_DSN"),
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		StatusTopic:    envString("KAFKA_STATUS_TOPIC", "order-status-changed"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
		HTTPAddr:       envString("HTTP_ADDR", ":8080"),
	}

	at := AutoTransitionConfig{
		Delays: make(map[domain.TransitionType]time.Duration, len(defaultDelays)),
	}
	for tt, d := range defaultDelays {
		at.Delays[tt] = d
	}

	var err error
	if at.Enabled, err = envBool("AUTO_TRANSITION_ENABLED", true); err != nil {
		return nil, err
	}
	if at.RespectBusinessHours, err = envBool("AUTO_TRANSITION_RESPECT_BUSINESS_HOURS", false); err != nil {
		return nil, err
	}
	if at.NotifyCustomerOnTransition, err = envBool("AUTO_TRANSITION_NOTIFY_CUSTOMER", false); err != nil {
		return nil, err
	}
	if at.BusinessStartHour, err = envInt("AUTO_TRANSITION_BUSINESS_START_HOUR", 8); err != nil {
		return nil, err
	}
	if at.BusinessEndHour, err = envInt("AUTO_TRANSITION_BUSINESS_END_HOUR", 22); err != nil {
		return nil, err
	}
	if at.SweepInterval, err = envDuration("AUTO_TRANSITION_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	for tt := range defaultDelays {
		key := "AUTO_TRANSITION_DELAY_" + string(tt)
		d, err := envDuration(key, at.Delays[tt])
		if err != nil {
			return nil, err
		}
		at.Delays[tt] = d
	}

	if at.BusinessStartHour < 0 || at.BusinessStartHour > 23 {
		return nil, fmt.Errorf("AUTO_TRANSITION_BUSINESS_START_HOUR must be in [0,23], got %d", at.BusinessStartHour)
	}
	if at.BusinessEndHour < 0 || at.BusinessEndHour > 23 {
		return nil, fmt.Errorf("AUTO_TRANSITION_BUSINESS_END_HOUR must be in [0,23], got %d", at.BusinessEndHour)
	}
	if at.BusinessStartHour >= at.BusinessEndHour {
		return nil, fmt.Errorf("business hours window is empty: start %d >= end %d",
			at.BusinessStartHour, at.BusinessEndHour)
	}
	if at.SweepInterval <= 0 {
		return nil, fmt.Errorf("AUTO_TRANSITION_SWEEP_INTERVAL must be positive, got %s", at.SweepInterval)
	}

	cfg.AutoTransition = at
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid bool %q", key, v)
	}
	return b, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid int %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
