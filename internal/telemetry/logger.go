// Package telemetry periodically logs per-interval deltas of the store,
// admission and background worker counters.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-edge/internal/admission"
	"github.com/Borislavv/go-ash-edge/internal/evictor"
	"github.com/Borislavv/go-ash-edge/internal/lifetimer"
	"github.com/Borislavv/go-ash-edge/internal/shared/bytes"
)

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	sampler  sampler
	interval time.Duration
}

// New starts logging every interval until Close or ctx is done. A
// non-positive interval keeps it silent.
func New(
	ctx context.Context,
	logger *slog.Logger,
	store StatsSource,
	gate admission.Gate,
	ev evictor.Evictor,
	lt lifetimer.Lifetimer,
	interval time.Duration,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	l := &Logs{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		sampler:  sampler{store: store, gate: gate, evictor: ev, lifetimer: lt},
		interval: interval,
	}
	if interval > 0 {
		go l.loop()
	}
	return l
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	prev := l.sampler.snapshot()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			cur := l.sampler.snapshot()
			l.emit(deltaSnapshot(prev, cur))
			prev = cur
		}
	}
}

func (l *Logs) emit(d snapshot) {
	common := []any{"interval", l.interval.String()}

	var ratio float64
	if total := d.hits + d.misses; total > 0 {
		ratio = float64(d.hits) / float64(total)
	}
	l.logger.Info("requests",
		append(common,
			"hits", int64(d.hits),
			"misses", int64(d.misses),
			"hit_ratio", ratio,
			"evicted", int64(d.evicted),
			"expired", int64(d.expired),
		)...,
	)

	if d.admissionAllowed > 0 || d.admissionRejected > 0 {
		l.logger.Info("admission_controller",
			append(common,
				"allowed", int64(d.admissionAllowed),
				"not_allowed", int64(d.admissionRejected),
			)...,
		)
	}

	if d.evictorScans > 0 {
		l.logger.Info("baseline_evictor",
			append(common,
				"scans", int64(d.evictorScans),
				"hits", int64(d.evictorHits),
				"freed_items", int64(d.evictorItems),
				"freed_units", int64(d.evictorFreed),
			)...,
		)
	}

	if d.sweeps > 0 {
		l.logger.Info("lifetime_manager",
			append(common,
				"sweeps", int64(d.sweeps),
				"hits", int64(d.sweepHits),
				"reclaimed", int64(d.reclaimed),
				"freed_units", int64(d.reclaimedFreed),
			)...,
		)
	}

	for _, st := range l.sampler.store.AllStats() {
		l.logger.Info("edge",
			append(common,
				"edge", st.Edge,
				"entries", st.Count,
				"used", st.BytesUsed,
				"capacity", st.Capacity,
				"usage", bytes.Ratio(st.BytesUsed, st.Capacity),
			)...,
		)
	}
}
