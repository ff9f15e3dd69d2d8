package config

import "time"

// EdgeCfg registers an edge node. Capacity is expressed in content size units.
type EdgeCfg struct {
	ID       string `yaml:"id"`
	Region   string `yaml:"region"`
	Capacity int64  `yaml:"capacity"`
}

// CatalogItemCfg seeds the in-memory content catalog.
type CatalogItemCfg struct {
	ID       string `yaml:"id"`
	Size     int64  `yaml:"size"`
	Category string `yaml:"category"`
	Type     string `yaml:"type"`
}

const defaultShardsPerEdge = 64

type StoreCfg struct {
	// ShardsPerEdge is the number of independently locked shards of every
	// edge namespace. Rounded up to a power of two.
	ShardsPerEdge int `yaml:"shards_per_edge"`

	// FillTTL is used for predictive-mode fills of content without a forecast.
	// Defaults to baseline.default_ttl.
	FillTTL time.Duration `yaml:"fill_ttl"`
}

func (cfg *StoreCfg) adjust() {
	if cfg.ShardsPerEdge <= 0 {
		cfg.ShardsPerEdge = defaultShardsPerEdge
	}
	n := 1
	for n < cfg.ShardsPerEdge {
		n <<= 1
	}
	cfg.ShardsPerEdge = n
}
