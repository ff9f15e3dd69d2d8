package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tier groups configuration of the whole edge tier.
// Optional subsystems are pointers: a nil sub-config disables the subsystem.
type Tier struct {
	Edges        []EdgeCfg        `yaml:"edges"`
	Store        StoreCfg         `yaml:"store"`
	Baseline     BaselineCfg      `yaml:"baseline"`
	Predictor    PredictorCfg     `yaml:"predictor"`
	Policy       PolicyCfg        `yaml:"policy"`
	Orchestrator OrchestratorCfg  `yaml:"orchestrator"`
	Origin       OriginCfg        `yaml:"origin"`
	Experiment   ExperimentCfg    `yaml:"experiment"`
	Serve        ServeCfg         `yaml:"serve"`
	Log          LogCfg           `yaml:"log"`
	Catalog      []CatalogItemCfg `yaml:"catalog"`

	// Lifetime configures the background reclaimer of expired entries.
	// If nil, expired entries are reclaimed lazily on lookup only.
	Lifetime *LifetimerCfg `yaml:"lifetime"`

	// Admission configures TinyLFU admission of request-path fills in baseline mode.
	// If nil, fills evict baseline victims unconditionally.
	Admission *AdmissionControlCfg `yaml:"admission"`

	// Postgres replaces the in-memory request log, catalog and decision sink.
	Postgres *PostgresCfg `yaml:"postgres"`

	// Journal writes every decision and cycle report as a JSON line.
	Journal *JournalCfg `yaml:"journal"`

	Metrics   *MetricsCfg   `yaml:"metrics"`
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}

// AdjustConfig fills defaults and computes virtual fields.
func (cfg *Tier) AdjustConfig() {
	for i := range cfg.Edges {
		if cfg.Edges[i].Region == "" {
			cfg.Edges[i].Region = "default"
		}
	}
	cfg.Store.adjust()
	cfg.Baseline.adjust()
	cfg.Predictor.adjust()
	cfg.Policy.adjust()
	cfg.Orchestrator.adjust(cfg.Predictor.Window)
	cfg.Origin.adjust()
	cfg.Experiment.adjust()
	cfg.Serve.adjust()
	cfg.Log.adjust()

	if cfg.Lifetime.Enabled() && cfg.Lifetime.Rate <= 0 {
		cfg.Lifetime.Rate = 10
	}
	if cfg.Admission.Enabled() {
		cfg.Admission.adjust()
	}
	if cfg.Postgres.Enabled() && cfg.Postgres.MaxConns <= 0 {
		cfg.Postgres.MaxConns = 8
	}
	if cfg.Metrics.Enabled() && cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "ashedge"
	}
	if cfg.Telemetry.Enabled() && cfg.Telemetry.Interval <= 0 {
		cfg.Telemetry.Interval = defaultTelemetryInterval
	}
}

// Validate reports every configuration problem found.
func (cfg *Tier) Validate() error {
	var errs []error
	if len(cfg.Edges) == 0 {
		errs = append(errs, errors.New("edges: at least one edge is required"))
	}
	seen := make(map[string]struct{}, len(cfg.Edges))
	for _, e := range cfg.Edges {
		if e.ID == "" {
			errs = append(errs, errors.New("edges: empty id"))
			continue
		}
		if _, dup := seen[e.ID]; dup {
			errs = append(errs, fmt.Errorf("edges: duplicate id %q", e.ID))
		}
		seen[e.ID] = struct{}{}
		if e.Capacity <= 0 {
			errs = append(errs, fmt.Errorf("edges: %q capacity must be positive", e.ID))
		}
	}
	errs = append(errs, cfg.Baseline.validate()...)
	errs = append(errs, cfg.Predictor.validate()...)
	errs = append(errs, cfg.Policy.validate()...)
	errs = append(errs, cfg.Origin.validate()...)
	if cfg.Postgres.Enabled() && cfg.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres: dsn is required"))
	}
	if cfg.Journal.Enabled() && cfg.Journal.Path == "" {
		errs = append(errs, errors.New("journal: path is required"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads, adjusts and validates the yaml config at path.
func LoadConfig(path string) (*Tier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse builds a config from raw yaml.
func Parse(data []byte) (*Tier, error) {
	cfg := new(Tier)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.AdjustConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a single-edge in-memory configuration, mostly for tests.
func Default() *Tier {
	cfg := &Tier{
		Edges:      []EdgeCfg{{ID: "edge-1", Region: "default", Capacity: 100}},
		Experiment: ExperimentCfg{Predictive: true},
	}
	cfg.AdjustConfig()
	return cfg
}
