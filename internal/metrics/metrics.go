// Package metrics exports request-path, store and decision-cycle figures.
package metrics

import (
	"time"

	"github.com/Borislavv/go-ash-edge/model"
)

// Metrics is implemented by Prom and NoOp.
type Metrics interface {
	// Request records one served lookup.
	Request(edge model.EdgeID, mode model.Mode, hit bool, latency time.Duration)
	// OriginError records a failed fill.
	OriginError(edge model.EdgeID)
	// Cycle records a finished decision cycle.
	Cycle(o model.Outcome)
	// Stats publishes the current per-edge store statistics.
	Stats(stats []model.Stats)
}

type NoOp struct{}

func (NoOp) Request(model.EdgeID, model.Mode, bool, time.Duration) {}
func (NoOp) OriginError(model.EdgeID)                             {}
func (NoOp) Cycle(model.Outcome)                                  {}
func (NoOp) Stats([]model.Stats)                                  {}
