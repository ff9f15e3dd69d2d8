package lifetimer

import "sync/atomic"

type lifetimerCounters struct {
	reclaimed  atomic.Int64 // removed expired entries
	freed      atomic.Int64 // released size units
	scans      atomic.Int64
	scanHits   atomic.Int64 // sweeps that queued at least one entry
	scanMisses atomic.Int64
}

func newLifetimerCounters() *lifetimerCounters { return &lifetimerCounters{} }

func (c *lifetimerCounters) snapshot() (reclaimed, freed, scans, hits, misses int64) {
	return c.reclaimed.Load(), c.freed.Load(), c.scans.Load(), c.scanHits.Load(), c.scanMisses.Load()
}
