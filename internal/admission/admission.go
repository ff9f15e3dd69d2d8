// Package admission decides whether a request-path fill may displace a
// resident entry. Access frequency of (edge, content) targets is estimated
// with a doorkeeper bitset in front of a count-min sketch of 4-bit counters
// that ages by halving (TinyLFU).
package admission

import (
	"sync/atomic"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/zeebo/xxh3"
)

// Gate is consulted by the request path before evicting victims to make room.
type Gate interface {
	// Record observes one lookup of t.
	Record(t model.Target)
	// Allow reports whether candidate is worth more than victim.
	Allow(candidate, victim model.Target) bool
	// Counters returns how many Allow calls admitted and rejected.
	Counters() (allowed, rejected int64)
	// Reset ages the frequency history at once, e.g. when a new experiment starts.
	Reset()
}

// New returns a TinyLFU gate, or a gate admitting everything when cfg is nil.
func New(cfg *config.AdmissionControlCfg) Gate {
	if cfg.Enabled() {
		return newTinyLFU(cfg)
	}
	return &noop{}
}

// Hash maps a target onto the sketch key space.
func Hash(t model.Target) uint64 {
	h := xxh3.New()
	_, _ = h.WriteString(string(t.Edge))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(t.Content))
	return h.Sum64()
}

type noop struct {
	allowed atomic.Int64
}

func (n *noop) Record(model.Target) {}
func (n *noop) Allow(model.Target, model.Target) bool {
	n.allowed.Add(1)
	return true
}
func (n *noop) Counters() (allowed, rejected int64) { return n.allowed.Load(), 0 }
func (n *noop) Reset()                              {}
