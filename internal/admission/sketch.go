package admission

import (
	"runtime"
	"sync/atomic"
)

const (
	nibble        = 0xF
	halfNibbles64 = 0x7777777777777777
	casTries      = 64
	yieldEvery    = 8
	sketchDepth   = 4
	doorDepth     = 3
)

// countMin packs 16 saturating 4-bit counters per word. Updates are lossy
// under heavy contention: an increment that keeps losing its CAS is dropped.
type countMin struct {
	words  []uint64
	mask   uint32
	adds   atomic.Uint64
	ageAt  uint64
	ageing atomic.Bool
}

func (c *countMin) init(counters uint32, sampleMultiplier uint64) {
	c.words = make([]uint64, (counters+15)/16)
	c.mask = counters - 1
	if sampleMultiplier == 0 {
		sampleMultiplier = 10
	}
	c.ageAt = sampleMultiplier * uint64(counters)
}

// increment counts h and reports whether this call aged the sketch.
func (c *countMin) increment(h uint64) (aged bool) {
	if c.adds.Load() >= c.ageAt && c.ageing.CompareAndSwap(false, true) {
		if c.adds.Load() >= c.ageAt {
			c.age()
			c.adds.Store(0)
			aged = true
		}
		c.ageing.Store(false)
	}

	var idx [sketchDepth]uint32
	probes(h, c.mask, idx[:])
	for _, i := range idx {
		c.bump(i)
	}
	c.adds.Add(1)
	return aged
}

func (c *countMin) estimate(h uint64) uint8 {
	var idx [sketchDepth]uint32
	probes(h, c.mask, idx[:])
	low := uint8(nibble)
	for _, i := range idx {
		if v := c.get(i); v < low {
			low = v
		}
	}
	return low
}

func (c *countMin) bump(i uint32) {
	ptr, shift := &c.words[i>>4], (i&0xF)<<2
	for try := 1; try <= casTries; try++ {
		old := atomic.LoadUint64(ptr)
		if (old>>shift)&nibble == nibble {
			return
		}
		if atomic.CompareAndSwapUint64(ptr, old, old+(1<<shift)) {
			return
		}
		if try%yieldEvery == 0 {
			runtime.Gosched()
		}
	}
}

func (c *countMin) get(i uint32) uint8 {
	return uint8((atomic.LoadUint64(&c.words[i>>4]) >> ((i & 0xF) << 2)) & nibble)
}

// age halves every counter.
func (c *countMin) age() {
	for i := range c.words {
		ptr := &c.words[i]
		for try := 1; try <= casTries; try++ {
			old := atomic.LoadUint64(ptr)
			if atomic.CompareAndSwapUint64(ptr, old, (old>>1)&halfNibbles64) {
				break
			}
			if try%yieldEvery == 0 {
				runtime.Gosched()
			}
		}
	}
}

// doorkeeper is a single-hash-family bloom filter. The owning shard resets it
// whenever its sketch ages.
type doorkeeper struct {
	bits []uint64
	mask uint32
}

func (d *doorkeeper) init(bits uint32) {
	n := nextPow2(int(bits))
	if n < 64 {
		n = 64
	}
	d.bits = make([]uint64, n/64)
	d.mask = uint32(n - 1)
}

func (d *doorkeeper) reset() {
	for i := range d.bits {
		atomic.StoreUint64(&d.bits[i], 0)
	}
}

func (d *doorkeeper) probablySeen(h uint64) bool {
	var idx [doorDepth]uint32
	probes(h, d.mask, idx[:])
	for _, i := range idx {
		if atomic.LoadUint64(&d.bits[i>>6])&(1<<(i&63)) == 0 {
			return false
		}
	}
	return true
}

// seenOrAdd reports whether h was probably seen and marks it otherwise.
func (d *doorkeeper) seenOrAdd(h uint64) bool {
	if d.probablySeen(h) {
		return true
	}
	var idx [doorDepth]uint32
	probes(h, d.mask, idx[:])
	for _, i := range idx {
		ptr, bit := &d.bits[i>>6], uint64(1)<<(i&63)
		for {
			old := atomic.LoadUint64(ptr)
			if old&bit != 0 || atomic.CompareAndSwapUint64(ptr, old, old|bit) {
				break
			}
		}
	}
	return false
}
