package lifetimer

// NoOpLifetimer leaves expired entries to lazy reclaim on lookup.
type NoOpLifetimer struct{}

func (NoOpLifetimer) Metrics() (reclaimed, freed, scans, hits, misses int64) {
	return 0, 0, 0, 0, 0
}

func (NoOpLifetimer) Close() error { return nil }
