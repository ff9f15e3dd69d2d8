package evictor

import "sync/atomic"

type evictorCounters struct {
	scans      atomic.Int64 // ticker passes
	scanHits   atomic.Int64 // passes that found an edge above the mark
	evicted    atomic.Int64
	freedBytes atomic.Int64
}

func newEvictorCounters() *evictorCounters { return &evictorCounters{} }

func (c *evictorCounters) snapshot() (scans, hits, evictedItems, evictedBytes int64) {
	return c.scans.Load(), c.scanHits.Load(), c.evicted.Load(), c.freedBytes.Load()
}
