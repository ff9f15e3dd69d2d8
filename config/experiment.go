package config

import "time"

// ExperimentCfg configures the predictive/baseline mode switch.
type ExperimentCfg struct {
	// Predictive is the initial mode.
	Predictive bool `yaml:"predictive"`

	// Redis keeps the mode in a shared hash so that several processes read the
	// same switch. If nil, the switch is process-local.
	Redis *RedisCfg `yaml:"redis"`

	// ResetOnSwitch clears every edge and ages admission history when the
	// mode flips, so that each experiment starts from a cold cache.
	ResetOnSwitch bool `yaml:"reset_on_switch"`
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`

	// Timeout bounds every mode read and write. Defaults to 500ms.
	Timeout time.Duration `yaml:"timeout"`
}

func (cfg *RedisCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *ExperimentCfg) adjust() {
	if cfg.Redis.Enabled() && cfg.Redis.Timeout <= 0 {
		cfg.Redis.Timeout = 500 * time.Millisecond
	}
}
