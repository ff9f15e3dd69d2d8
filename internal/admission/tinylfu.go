package admission

import (
	"sync/atomic"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/model"
)

type tinyLFU struct {
	mask   uint64
	shards []lfuShard

	allowed  atomic.Int64
	rejected atomic.Int64
}

type lfuShard struct {
	counters countMin
	door     doorkeeper
	_        [64]byte // keeps neighbouring shards off one cache line
}

func newTinyLFU(cfg *config.AdmissionControlCfg) *tinyLFU {
	shards := nextPow2(cfg.Shards)
	perShard := cfg.Capacity / shards
	if perShard < 1 {
		perShard = 1
	}
	tableLen := nextPow2(perShard)
	if tableLen < cfg.MinTableLenPerShard {
		tableLen = nextPow2(cfg.MinTableLenPerShard)
	}

	t := &tinyLFU{mask: uint64(shards - 1), shards: make([]lfuShard, shards)}
	for i := range t.shards {
		t.shards[i].counters.init(uint32(tableLen), uint64(cfg.SampleMultiplier))
		t.shards[i].door.init(uint32(tableLen * cfg.DoorBitsPerCounter))
	}
	return t
}

func (t *tinyLFU) shard(h uint64) *lfuShard { return &t.shards[h&t.mask] }

// Record sets doorkeeper bits on first sight and counts from the second sight
// on, which keeps one-hit wonders out of the sketch. The doorkeeper is
// forgotten whenever the shard's sketch ages.
func (t *tinyLFU) Record(target model.Target) {
	h := Hash(target)
	sh := t.shard(h)
	if sh.door.seenOrAdd(h) && sh.counters.increment(h) {
		sh.door.reset()
	}
}

// Allow admits a candidate only when it was seen before and is strictly more
// frequent than the victim. Ties keep the victim.
func (t *tinyLFU) Allow(candidate, victim model.Target) bool {
	if candidate == victim {
		return true
	}
	ch, vh := Hash(candidate), Hash(victim)
	cs := t.shard(ch)
	if !cs.door.probablySeen(ch) || cs.counters.estimate(ch) <= t.shard(vh).counters.estimate(vh) {
		t.rejected.Add(1)
		return false
	}
	t.allowed.Add(1)
	return true
}

func (t *tinyLFU) estimate(target model.Target) uint8 {
	h := Hash(target)
	return t.shard(h).counters.estimate(h)
}

func (t *tinyLFU) Counters() (allowed, rejected int64) {
	return t.allowed.Load(), t.rejected.Load()
}

// Reset ages every counter now and forgets the doorkeeper.
func (t *tinyLFU) Reset() {
	for i := range t.shards {
		t.shards[i].counters.age()
		t.shards[i].door.reset()
	}
}

func nextPow2(x int) int {
	p := 1
	for p < x {
		p <<= 1
	}
	return p
}

// mix64 is the SplitMix64 finalizer; it derives further probe indices from one hash.
func mix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// probes returns n indices under mask derived from h.
func probes(h uint64, mask uint32, out []uint32) {
	for i := range out {
		out[i] = uint32(h) & mask
		h = mix64(h)
	}
}
