package config

import (
	"fmt"
	"time"
)

// Strategy selects the baseline victim ordering.
type Strategy string

const (
	// StrategyLRU evicts the least recently accessed entries first.
	StrategyLRU Strategy = "lru"

	// StrategyLFU evicts the least frequently accessed entries first.
	StrategyLFU Strategy = "lfu"
)

type BaselineCfg struct {
	// Strategy defines the victim ordering when predictive mode is off.
	// Supported values:
	//   - "lru": least recently accessed first
	//   - "lfu": least frequently accessed first
	Strategy Strategy `yaml:"strategy"`

	// HighWaterMark is the usage fraction of an edge capacity above which the
	// evictor starts removing victims.
	//
	// Example:
	//   HighWaterMark: 0.90 // evict while usage is above 90% of capacity
	HighWaterMark float64 `yaml:"high_water_mark"`

	// DefaultTTL is applied to every new entry when predictive mode is off.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// CallsPerSec defines how many enforcement passes the evictor performs per second.
	CallsPerSec int64 `yaml:"calls_per_sec"`
}

func (cfg *BaselineCfg) adjust() {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLRU
	}
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = 0.9
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.CallsPerSec <= 0 {
		cfg.CallsPerSec = 4
	}
}

func (cfg *BaselineCfg) validate() []error {
	var errs []error
	if cfg.Strategy != StrategyLRU && cfg.Strategy != StrategyLFU {
		errs = append(errs, fmt.Errorf("baseline: unknown strategy %q", cfg.Strategy))
	}
	if cfg.HighWaterMark > 1 {
		errs = append(errs, fmt.Errorf("baseline: high_water_mark %.2f is above 1", cfg.HighWaterMark))
	}
	return errs
}
