package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all process settings, populated from environment variables.
type Config struct {
	JobFile string

	MatchRadiusDeg   float64
	SpanThresholdDeg float64
	Workers          int
	Partition        string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka publishing of tagged-blob events.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int

	// LedgerPath is the SQLite run ledger; empty disables it.
	LedgerPath string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	radius, err := parseFloat("MATCH_RADIUS_DEG", "5")
	if err != nil {
		return nil, err
	}
	span, err := parseFloat("ANTIMERIDIAN_SPAN_DEG", "180")
	if err != nil {
		return nil, err
	}
	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false"))
	if err != nil {
		return nil, errors.New("invalid KAFKA_ENABLED")
	}

	cfg := &Config{
		JobFile:          sharedcfg.EnvOrDefault("JOB_FILE", ""),
		MatchRadiusDeg:   radius,
		SpanThresholdDeg: span,
		Workers:          workers,
		Partition:        sharedcfg.EnvOrDefault("PARTITION", "year"),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "tagged-blobs"),
		BatchSize:        batchSize,
		LedgerPath:       sharedcfg.EnvOrDefault("LEDGER_PATH", ""),
	}

	if cfg.HTTPAddr == "off" {
		cfg.HTTPAddr = ""
	}

	if cfg.JobFile == "" {
		return nil, errors.New("JOB_FILE is required")
	}
	if cfg.MatchRadiusDeg <= 0 || cfg.MatchRadiusDeg > 180 {
		return nil, errors.New("MATCH_RADIUS_DEG must be in (0, 180]")
	}
	if cfg.SpanThresholdDeg <= 0 || cfg.SpanThresholdDeg >= 360 {
		return nil, errors.New("ANTIMERIDIAN_SPAN_DEG must be in (0, 360)")
	}
	switch cfg.Partition {
	case "year", "month", "all":
	default:
		return nil, fmt.Errorf("invalid PARTITION %q (want year, month or all)", cfg.Partition)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseFloat(name, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(name, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func parseWorkers() (int, error) {
	s := sharedcfg.EnvOrDefault("WORKERS", "")
	if s == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid WORKERS")
	}
	return n, nil
}
