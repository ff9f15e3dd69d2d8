package config

import "time"

// ServeCfg bounds the collaborator calls of the request path. The origin
// fetch is bounded by origin.timeout.
type ServeCfg struct {
	// MetadataTimeout bounds a content metadata lookup on miss.
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`

	// SinkTimeout bounds writing one request event to every sink. Sinks are
	// written after the caller's context is detached, so a cancelled request
	// is still recorded.
	SinkTimeout time.Duration `yaml:"sink_timeout"`
}

func (cfg *ServeCfg) adjust() {
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = 500 * time.Millisecond
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 500 * time.Millisecond
	}
}
