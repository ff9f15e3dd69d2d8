package model

import "time"

// CachedEntry is a read-only snapshot of a cache entry.
type CachedEntry struct {
	Edge        EdgeID
	Content     ContentID
	Size        int64
	TTL         time.Duration
	CreatedAt   time.Time
	ExpiresAt   time.Time
	AccessCount int64
	LastAccess  time.Time
}

// Stats describes one edge namespace of the cache store.
type Stats struct {
	Edge      EdgeID
	Region    string
	Count     int64
	BytesUsed int64
	Capacity  int64
	Hits      int64
	Misses    int64
	Evicted   int64
	Expired   int64
}

// Node returns the capacity/usage view of the stats.
func (s Stats) Node() EdgeNode {
	return EdgeNode{ID: s.Edge, Region: s.Region, Capacity: s.Capacity, Usage: s.BytesUsed}
}
