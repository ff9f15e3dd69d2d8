package telemetry

import (
	"github.com/Borislavv/go-ash-edge/internal/admission"
	"github.com/Borislavv/go-ash-edge/internal/evictor"
	"github.com/Borislavv/go-ash-edge/internal/lifetimer"
	"github.com/Borislavv/go-ash-edge/model"
)

// StatsSource yields per-edge store statistics.
type StatsSource interface {
	AllStats() []model.Stats
}

type sampler struct {
	store     StatsSource
	gate      admission.Gate
	evictor   evictor.Evictor
	lifetimer lifetimer.Lifetimer
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	hits    uint64
	misses  uint64
	evicted uint64
	expired uint64

	admissionAllowed  uint64
	admissionRejected uint64

	evictorScans uint64
	evictorHits  uint64
	evictorItems uint64
	evictorFreed uint64

	reclaimed      uint64
	reclaimedFreed uint64
	sweeps         uint64
	sweepHits      uint64
}

func (s sampler) snapshot() snapshot {
	var out snapshot
	for _, st := range s.store.AllStats() {
		out.hits += nonNeg(st.Hits)
		out.misses += nonNeg(st.Misses)
		out.evicted += nonNeg(st.Evicted)
		out.expired += nonNeg(st.Expired)
	}

	allowed, rejected := s.gate.Counters()
	out.admissionAllowed, out.admissionRejected = nonNeg(allowed), nonNeg(rejected)

	scans, hits, items, freed := s.evictor.Metrics()
	out.evictorScans, out.evictorHits, out.evictorItems, out.evictorFreed = nonNeg(scans), nonNeg(hits), nonNeg(items), nonNeg(freed)

	reclaimed, rFreed, sweeps, sweepHits, _ := s.lifetimer.Metrics()
	out.reclaimed, out.reclaimedFreed, out.sweeps, out.sweepHits = nonNeg(reclaimed), nonNeg(rFreed), nonNeg(sweeps), nonNeg(sweepHits)
	return out
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		hits:    delta(prev.hits, cur.hits),
		misses:  delta(prev.misses, cur.misses),
		evicted: delta(prev.evicted, cur.evicted),
		expired: delta(prev.expired, cur.expired),

		admissionAllowed:  delta(prev.admissionAllowed, cur.admissionAllowed),
		admissionRejected: delta(prev.admissionRejected, cur.admissionRejected),

		evictorScans: delta(prev.evictorScans, cur.evictorScans),
		evictorHits:  delta(prev.evictorHits, cur.evictorHits),
		evictorItems: delta(prev.evictorItems, cur.evictorItems),
		evictorFreed: delta(prev.evictorFreed, cur.evictorFreed),

		reclaimed:      delta(prev.reclaimed, cur.reclaimed),
		reclaimedFreed: delta(prev.reclaimedFreed, cur.reclaimedFreed),
		sweeps:         delta(prev.sweeps, cur.sweeps),
		sweepHits:      delta(prev.sweepHits, cur.sweepHits),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}

func nonNeg(v int64) uint64 { return uint64(max(v, 0)) }
