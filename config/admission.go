package config

// AdmissionControlCfg configures TinyLFU admission of request-path fills.
// When a baseline fill needs to evict victims to fit, the candidate is only
// admitted if its estimated frequency beats the first victim's.
type AdmissionControlCfg struct {
	// Capacity is the expected number of distinct (edge, content) keys.
	Capacity int `yaml:"capacity"`

	// Shards defines how many independent sketch shards to use.
	Shards int `yaml:"shards"`

	// MinTableLenPerShard sets a lower bound for the counter table of one shard.
	MinTableLenPerShard int `yaml:"min_table_len_per_shard"`

	// SampleMultiplier defines the aging period: after Capacity*SampleMultiplier
	// increments a shard halves all its counters.
	SampleMultiplier int `yaml:"sample_multiplier"`

	// DoorBitsPerCounter sizes the doorkeeper bitset relative to the counter table.
	DoorBitsPerCounter int `yaml:"door_bits_per_counter"`
}

func (cfg *AdmissionControlCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *AdmissionControlCfg) adjust() {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1 << 16
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 16
	}
	if cfg.MinTableLenPerShard <= 0 {
		cfg.MinTableLenPerShard = 1024
	}
	if cfg.SampleMultiplier <= 0 {
		cfg.SampleMultiplier = 10
	}
	if cfg.DoorBitsPerCounter <= 0 {
		cfg.DoorBitsPerCounter = 8
	}
}
