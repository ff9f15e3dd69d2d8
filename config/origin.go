package config

import (
	"fmt"
	"time"
)

type OriginKind string

const (
	OriginStatic OriginKind = "static"
	OriginHTTP   OriginKind = "http"
	OriginS3     OriginKind = "s3"
)

type OriginCfg struct {
	// Kind selects the origin implementation.
	// Supported values:
	//   - "static": payloads synthesized from the catalog (simulation)
	//   - "http":   GET {base_url}/api/v1/content/{id}
	//   - "s3":     GetObject {bucket}/{prefix}{id}
	Kind OriginKind `yaml:"kind"`

	// Timeout bounds a single origin fetch.
	Timeout time.Duration `yaml:"timeout"`

	// Delay is injected by the static origin to simulate origin latency.
	Delay time.Duration `yaml:"delay"`

	HTTP *HTTPOriginCfg `yaml:"http"`
	S3   *S3OriginCfg   `yaml:"s3"`

	// Breaker wraps the origin with a circuit breaker. Nil disables it.
	Breaker *BreakerCfg `yaml:"breaker"`
}

type HTTPOriginCfg struct {
	BaseURL string `yaml:"base_url"`
}

type S3OriginCfg struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

type BreakerCfg struct {
	// MinRequests is the number of requests in a closed interval before the
	// failure ratio is evaluated.
	MinRequests uint32 `yaml:"min_requests"`

	// FailureRatio trips the breaker when reached.
	FailureRatio float64 `yaml:"failure_ratio"`

	// Interval clears closed-state counts periodically. Zero never clears.
	Interval time.Duration `yaml:"interval"`

	// OpenTimeout is how long the breaker stays open before half-open probing.
	OpenTimeout time.Duration `yaml:"open_timeout"`

	// HalfOpenRequests is the number of probes admitted while half-open.
	HalfOpenRequests uint32 `yaml:"half_open_requests"`
}

func (cfg *BreakerCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *OriginCfg) adjust() {
	if cfg.Kind == "" {
		cfg.Kind = OriginStatic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if b := cfg.Breaker; b.Enabled() {
		if b.MinRequests == 0 {
			b.MinRequests = 20
		}
		if b.FailureRatio <= 0 {
			b.FailureRatio = 0.5
		}
		if b.OpenTimeout <= 0 {
			b.OpenTimeout = 30 * time.Second
		}
		if b.HalfOpenRequests == 0 {
			b.HalfOpenRequests = 1
		}
	}
}

func (cfg *OriginCfg) validate() []error {
	switch cfg.Kind {
	case OriginStatic:
	case OriginHTTP:
		if cfg.HTTP == nil || cfg.HTTP.BaseURL == "" {
			return []error{fmt.Errorf("origin: http.base_url is required")}
		}
	case OriginS3:
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return []error{fmt.Errorf("origin: s3.bucket is required")}
		}
	default:
		return []error{fmt.Errorf("origin: unknown kind %q", cfg.Kind)}
	}
	return nil
}
