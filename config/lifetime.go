package config

type LifetimerCfg struct {
	// Rate limits how many expired-entry reclaim passes run per second.
	// Example: 10.
	Rate int `yaml:"rate"`
}

func (cfg *LifetimerCfg) Enabled() bool {
	return cfg != nil
}
