package config

import "time"

type OrchestratorCfg struct {
	// Interval between scheduled decision cycles. Zero disables the scheduler;
	// cycles then run on demand only.
	Interval time.Duration `yaml:"interval"`

	// Window of request history read per cycle. Defaults to predictor.window.
	Window time.Duration `yaml:"window"`

	// InputTimeout bounds gathering of request logs and metadata.
	InputTimeout time.Duration `yaml:"input_timeout"`

	// ApplyTimeout bounds every single decision application (origin fetch included).
	ApplyTimeout time.Duration `yaml:"apply_timeout"`
}

func (cfg *OrchestratorCfg) adjust(predictorWindow time.Duration) {
	if cfg.Window <= 0 {
		cfg.Window = predictorWindow
	}
	if cfg.InputTimeout <= 0 {
		cfg.InputTimeout = 5 * time.Second
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 2 * time.Second
	}
}
