// Package baseline orders eviction victims when predictive mode is off.
// Orderings are total: ties are broken by content id so that victim choice
// is reproducible.
package baseline

import (
	"sort"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/model"
)

// Less reports whether a should be evicted before b.
type Less func(a, b model.CachedEntry) bool

// LRU orders least recently accessed first. Entries never accessed use their
// creation time as the last access.
func LRU(a, b model.CachedEntry) bool {
	la, lb := lastUse(a), lastUse(b)
	if !la.Equal(lb) {
		return la.Before(lb)
	}
	return a.Content < b.Content
}

// LFU orders least frequently accessed first, then least recently accessed.
func LFU(a, b model.CachedEntry) bool {
	if a.AccessCount != b.AccessCount {
		return a.AccessCount < b.AccessCount
	}
	return LRU(a, b)
}

// For returns the ordering of strategy. Unknown strategies fall back to LRU.
func For(strategy config.Strategy) Less {
	if strategy == config.StrategyLFU {
		return LFU
	}
	return LRU
}

func lastUse(e model.CachedEntry) time.Time {
	if e.LastAccess.IsZero() {
		return e.CreatedAt
	}
	return e.LastAccess
}

// Order sorts a copy of entries in eviction order.
func Order(entries []model.CachedEntry, less Less) []model.CachedEntry {
	out := make([]model.CachedEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Victims returns the shortest eviction-order prefix whose removal brings
// usage strictly below mark*capacity. Nothing is returned when the node is
// already at or below the mark.
func Victims(node model.EdgeNode, entries []model.CachedEntry, mark float64, less Less) []model.CachedEntry {
	if !node.Above(mark) {
		return nil
	}
	limit := mark * float64(node.Capacity)
	usage := node.Usage

	ordered := Order(entries, less)
	for i, e := range ordered {
		usage -= e.Size
		if float64(usage) < limit {
			return ordered[:i+1]
		}
	}
	return ordered
}
