package model

import "time"

// RequestEvent is one served lookup. Events are immutable and append-only.
type RequestEvent struct {
	ContentID ContentID
	EdgeID    EdgeID
	At        time.Time
	Hit       bool
	Latency   time.Duration
}

// NewRequestEvent builds an event with a normalized timestamp.
func NewRequestEvent(content ContentID, edge EdgeID, at time.Time, hit bool, latency time.Duration) RequestEvent {
	return RequestEvent{
		ContentID: content,
		EdgeID:    edge,
		At:        Normalize(at),
		Hit:       hit,
		Latency:   latency,
	}
}
