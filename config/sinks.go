package config

import (
	"log/slog"
	"strings"
	"time"
)

const defaultTelemetryInterval = 5 * time.Second

type PostgresCfg struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`

	// ExperimentID tags persisted requests and decisions. Optional.
	ExperimentID *int64 `yaml:"experiment_id"`
}

func (cfg *PostgresCfg) Enabled() bool {
	return cfg != nil
}

type JournalCfg struct {
	Path string `yaml:"path"`
}

func (cfg *JournalCfg) Enabled() bool {
	return cfg != nil
}

type MetricsCfg struct {
	// Addr is the listen address of the /metrics endpoint, e.g. ":9090".
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

func (cfg *MetricsCfg) Enabled() bool {
	return cfg != nil
}

type TelemetryCfg struct {
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}

type LogCfg struct {
	Level string `yaml:"level"`
}

func (cfg *LogCfg) adjust() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
}

// SlogLevel maps Level onto slog levels; unknown values mean info.
func (cfg *LogCfg) SlogLevel() slog.Level {
	switch strings.ToLower(cfg.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
