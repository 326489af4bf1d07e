package config

import (
	"os"
	"strconv"
	"time"

	"veripipe/internal/errors"
)

// Config represents the complete application configuration. It is read once
// at startup; nothing in the core hot-reloads it.
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Validation ValidationConfig
	EventStore EventStoreConfig
	QA         QAConfig
	Verifier   VerifierConfig
	Notify     NotifyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds the read-API server settings
type ServerConfig struct {
	Port string
}

// ValidationConfig holds rule evaluation settings
type ValidationConfig struct {
	// Level is the enforcement level: basic, standard, strict or paranoid.
	Level string
	// RulesFile optionally points at a YAML rule-set file; when empty the
	// built-in rule set applies.
	RulesFile string
}

// EventStoreConfig holds ingestion buffer settings
type EventStoreConfig struct {
	FlushThreshold    int
	ValidationEnabled bool
}

// QAConfig holds the continuous QA scheduler settings
type QAConfig struct {
	Interval     time.Duration
	RetryBackoff time.Duration
}

// VerifierConfig holds realtime verification settings
type VerifierConfig struct {
	QueueCapacity      int
	AlertQueueCapacity int
	MetricsInterval    time.Duration
	DeepWorkerWeight   int64
}

// NotifyConfig holds alert delivery settings. Empty URLs fall back to
// log-based sinks.
type NotifyConfig struct {
	CriticalWebhookURL string
	ErrorWebhookURL    string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: envOr("PORT", "8080"),
		},
		Validation: ValidationConfig{
			Level:     envOr("VALIDATION_LEVEL", "standard"),
			RulesFile: os.Getenv("VALIDATION_RULES_FILE"),
		},
		EventStore: EventStoreConfig{
			FlushThreshold:    envOrInt("EVENT_FLUSH_THRESHOLD", 50),
			ValidationEnabled: envOrBool("EVENT_VALIDATION_ENABLED", true),
		},
		QA: QAConfig{
			Interval:     time.Duration(envOrInt("QA_INTERVAL_MINUTES", 60)) * time.Minute,
			RetryBackoff: time.Duration(envOrInt("QA_RETRY_BACKOFF_MS", 1000)) * time.Millisecond,
		},
		Verifier: VerifierConfig{
			QueueCapacity:      envOrInt("VERIFICATION_QUEUE_CAPACITY", 1000),
			AlertQueueCapacity: envOrInt("ALERT_QUEUE_CAPACITY", 500),
			MetricsInterval:    time.Duration(envOrInt("METRICS_INTERVAL_SECONDS", 10)) * time.Second,
			DeepWorkerWeight:   int64(envOrInt("DEEP_WORKER_CAPACITY", 4)),
		},
		Notify: NotifyConfig{
			CriticalWebhookURL: os.Getenv("CRITICAL_ALERT_WEBHOOK_URL"),
			ErrorWebhookURL:    os.Getenv("ERROR_ALERT_WEBHOOK_URL"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}

	switch cfg.Validation.Level {
	case "basic", "standard", "strict", "paranoid":
	default:
		return errors.ConfigInvalid("VALIDATION_LEVEL must be basic, standard, strict or paranoid")
	}

	if cfg.EventStore.FlushThreshold <= 0 {
		return errors.ConfigInvalid("EVENT_FLUSH_THRESHOLD must be positive")
	}
	if cfg.Verifier.QueueCapacity <= 0 || cfg.Verifier.AlertQueueCapacity <= 0 {
		return errors.ConfigInvalid("queue capacities must be positive")
	}
	if cfg.Verifier.DeepWorkerWeight <= 0 {
		return errors.ConfigInvalid("DEEP_WORKER_CAPACITY must be positive")
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
