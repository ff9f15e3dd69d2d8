package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
edges:
  - id: edge-eu
    region: eu-west
    capacity: 1000
  - id: edge-us
    capacity: 500
baseline:
  strategy: lfu
  default_ttl: 30m
policy:
  prefetch_threshold: 5
  max_ttl: 12h
origin:
  kind: http
  http:
    base_url: http://origin.local
  breaker: {}
lifetime:
  rate: 20
admission: {}
journal:
  path: /tmp/decisions.jsonl
`

// TestParse_DefaultsAndVirtualFields verifies that omitted values receive defaults and derived fields are computed.
func TestParse_DefaultsAndVirtualFields(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Edges, 2)
	require.Equal(t, "default", cfg.Edges[1].Region)
	require.Equal(t, StrategyLFU, cfg.Baseline.Strategy)
	require.Equal(t, 30*time.Minute, cfg.Baseline.DefaultTTL)
	require.Equal(t, 0.9, cfg.Baseline.HighWaterMark)

	require.Equal(t, int64(5), cfg.Policy.PrefetchThreshold)
	require.Equal(t, 12*time.Hour, cfg.Policy.MaxTTL)
	require.Equal(t, time.Minute, cfg.Policy.MinTTL)
	require.True(t, cfg.Policy.IsFallbackPrefetch)
	require.Equal(t, 0.2, cfg.Policy.ConfidenceFloor)

	require.Equal(t, 0.3, cfg.Predictor.Alpha)
	require.Equal(t, cfg.Predictor.Window, cfg.Orchestrator.Window)
	require.Equal(t, 64, cfg.Store.ShardsPerEdge)

	require.True(t, cfg.Origin.Breaker.Enabled())
	require.Equal(t, uint32(20), cfg.Origin.Breaker.MinRequests)
	require.True(t, cfg.Lifetime.Enabled())
	require.Equal(t, 20, cfg.Lifetime.Rate)
	require.True(t, cfg.Admission.Enabled())
	require.Equal(t, 16, cfg.Admission.Shards)

	require.False(t, cfg.Postgres.Enabled())
	require.False(t, cfg.Metrics.Enabled())
	require.False(t, cfg.Experiment.Redis.Enabled())
}

// TestParse_Invalid verifies that validation reports broken settings.
func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`
edges:
  - id: a
    capacity: 0
  - id: a
    capacity: 10
baseline:
  strategy: fifo
origin:
  kind: s3
`))
	require.Error(t, err)
	require.ErrorContains(t, err, "capacity must be positive")
	require.ErrorContains(t, err, "duplicate id")
	require.ErrorContains(t, err, "unknown strategy")
	require.ErrorContains(t, err, "s3.bucket is required")
}

// TestLoadConfig verifies reading from disk and the missing-file error.
func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "edge-eu", cfg.Edges[0].ID)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestStoreCfg_ShardsRoundedToPowerOfTwo verifies shard count rounding.
func TestStoreCfg_ShardsRoundedToPowerOfTwo(t *testing.T) {
	cfg := StoreCfg{ShardsPerEdge: 100}
	cfg.adjust()
	require.Equal(t, 128, cfg.ShardsPerEdge)
}

// TestParse_ZeroMinConfidence verifies an explicit zero disables the confidence gate instead of falling back to the default.
func TestParse_ZeroMinConfidence(t *testing.T) {
	cfg, err := Parse([]byte(`
edges:
  - id: e
    capacity: 10
policy:
  min_confidence: 0
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Policy.MinConfidence)
	require.Zero(t, cfg.Policy.ConfidenceFloor)

	_, err = Parse([]byte(`
edges:
  - id: e
    capacity: 10
policy:
  min_confidence: 1.5
`))
	require.ErrorContains(t, err, "min_confidence")
}
