package config

import (
	"errors"
	"time"
)

// PolicyCfg holds the tunable thresholds of the caching policy engine.
type PolicyCfg struct {
	// PrefetchThreshold is the minimum predicted request count for a prefetch.
	PrefetchThreshold int64 `yaml:"prefetch_threshold"`

	// MinConfidence is the minimum forecast confidence for a prefetch.
	// Unset means 0.2; an explicit 0 disables the confidence gate.
	MinConfidence *float64 `yaml:"min_confidence"`

	// ConfidenceFloor is derived from MinConfidence.
	ConfidenceFloor float64 // virtual: computed during init

	// EvictionThreshold is the predicted request count at or below which a
	// resident entry is evicted.
	EvictionThreshold int64 `yaml:"eviction_threshold"`

	// HighWaterMark is the usage fraction above which eviction priority is boosted.
	HighWaterMark float64 `yaml:"high_water_mark"`

	MinTTL time.Duration `yaml:"min_ttl"`
	MaxTTL time.Duration `yaml:"max_ttl"`

	// ReferenceRequests is the predicted request count that earns MaxTTL.
	// Lower counts earn proportionally shorter TTL tiers.
	ReferenceRequests int64 `yaml:"ttl_reference_requests"`

	// MinTTLChange is the relative TTL change below which no update is emitted.
	//
	// Example:
	//   MinTTLChange: 0.2 // only retune when the new TTL differs by more than 20%
	MinTTLChange float64 `yaml:"min_ttl_change"`

	MaxPriority int `yaml:"max_priority"`

	// FallbackPrefetch enables prefetching the most requested content when no
	// forecast passes the prefetch thresholds.
	FallbackPrefetch *bool `yaml:"fallback_prefetch"`

	// IsFallbackPrefetch is derived from FallbackPrefetch (default true).
	IsFallbackPrefetch bool // virtual: computed during init
}

func (cfg *PolicyCfg) adjust() {
	if cfg.PrefetchThreshold <= 0 {
		cfg.PrefetchThreshold = 2
	}
	cfg.ConfidenceFloor = 0.2
	if cfg.MinConfidence != nil {
		cfg.ConfidenceFloor = *cfg.MinConfidence
	}
	if cfg.EvictionThreshold < 0 {
		cfg.EvictionThreshold = 0
	}
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = 0.9
	}
	if cfg.MinTTL <= 0 {
		cfg.MinTTL = time.Minute
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 24 * time.Hour
	}
	if cfg.ReferenceRequests <= 0 {
		cfg.ReferenceRequests = 50
	}
	if cfg.MinTTLChange <= 0 {
		cfg.MinTTLChange = 0.2
	}
	if cfg.MaxPriority <= 0 {
		cfg.MaxPriority = 100
	}
	cfg.IsFallbackPrefetch = cfg.FallbackPrefetch == nil || *cfg.FallbackPrefetch
}

func (cfg *PolicyCfg) validate() []error {
	var errs []error
	if cfg.MinTTL > cfg.MaxTTL {
		errs = append(errs, errors.New("policy: min_ttl is above max_ttl"))
	}
	if cfg.EvictionThreshold >= cfg.PrefetchThreshold {
		errs = append(errs, errors.New("policy: eviction_threshold must be below prefetch_threshold"))
	}
	if cfg.ConfidenceFloor < 0 || cfg.ConfidenceFloor > 1 {
		errs = append(errs, errors.New("policy: min_confidence must be in [0, 1]"))
	}
	return errs
}
