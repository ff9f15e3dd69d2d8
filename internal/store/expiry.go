package store

import (
	"context"

	"github.com/Borislavv/go-ash-edge/internal/store/entry"
)

const sweepSample = 256

func enqueueExpired(sh *Shard, e *entry.Entry) {
	if e.MarkQueued() && !sh.expired.TryPush(e.Content()) {
		e.Unqueue()
	}
}

// Sweep scans the next shard of every edge (round robin) and queues up to
// sweepSample expired entries per shard for Reclaim. Returns how many were queued.
func (s *Store) Sweep(ctx context.Context) (queued int) {
	now := s.clock.UnixNano()
	for _, n := range s.sortedNodes() {
		sh := n.nextShard()
		if sh.Len() == 0 {
			continue
		}
		seen := 0
		sh.walkR(ctx, func(e *entry.Entry) bool {
			if e.IsExpired(now) {
				enqueueExpired(sh, e)
				queued++
			}
			seen++
			return seen < sweepSample
		})
	}
	return queued
}

// Reclaim removes queued entries that are still expired and returns the
// number of removed entries and released size units.
func (s *Store) Reclaim(ctx context.Context) (entries, freed int64) {
	now := s.clock.UnixNano()
	for _, n := range s.sortedNodes() {
		for _, sh := range n.shards {
			if ctx.Err() != nil {
				return entries, freed
			}
			for {
				content, ok := sh.expired.TryPop()
				if !ok {
					break
				}
				sh.Lock()
				e, found := sh.items[content]
				if found && e.IsExpired(now) {
					sh.removeUnlocked(content)
					n.release(e.Size())
					n.count.Add(-1)
					n.expired.Add(1)
					entries++
					freed += e.Size()
				} else if found {
					e.Unqueue()
				}
				sh.Unlock()
			}
		}
	}
	return entries, freed
}
