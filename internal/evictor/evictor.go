package evictor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/baseline"
	"github.com/Borislavv/go-ash-edge/internal/experiment"
	"github.com/Borislavv/go-ash-edge/internal/store"
	"github.com/Borislavv/go-ash-edge/model"
)

var ErrEvictorNotResponded = errors.New("evictor not responded")

// Store is the part of the edge cache store the evictor works on.
type Store interface {
	Nodes() []model.EdgeNode
	Entries(ctx context.Context, edge model.EdgeID) ([]model.CachedEntry, error)
	Evict(edge model.EdgeID, content model.ContentID) error
}

type Evictor interface {
	ForceCall(timeout time.Duration) error
	Metrics() (scans, hits, evictedItems, evictedBytes int64)
	Close() error
}

// EvictionWorker enforces the baseline high-water mark on every edge while
// predictive mode is off. In predictive mode the policy engine owns eviction.
type EvictionWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.BaselineCfg
	logger   *slog.Logger
	store    Store
	modes    experiment.Source
	less     baseline.Less
	counters *evictorCounters
	invokeCh chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.BaselineCfg,
	logger *slog.Logger,
	store Store,
	modes experiment.Source,
) Evictor {
	if cfg == nil {
		return &NoOpEvictor{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&EvictionWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		modes:    modes,
		less:     baseline.For(cfg.Strategy),
		counters: newEvictorCounters(),
		invokeCh: make(chan struct{}),
	}).run()
}

// ForceCall triggers one enforcement pass regardless of the ticker.
func (w *EvictionWorker) ForceCall(timeout time.Duration) error {
	after := time.NewTimer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- struct{}{}:
	case <-after.C:
		return ErrEvictorNotResponded
	}
	return nil
}

func (w *EvictionWorker) Metrics() (scans, hits, evictedItems, evictedBytes int64) {
	return w.counters.snapshot()
}

func (w *EvictionWorker) Close() error {
	w.cancel()
	return nil
}

func (w *EvictionWorker) run() *EvictionWorker {
	w.logger.Info("evictor is running", "strategy", w.cfg.Strategy, "high_water_mark", w.cfg.HighWaterMark, "calls_per_sec", w.cfg.CallsPerSec)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.consumer()
	}()
	go func() {
		defer w.logger.Info("evictor is stopped")
		w.provider()
		<-done
	}()

	return w
}

// provider wakes the consumer when some edge is above the high-water mark.
func (w *EvictionWorker) provider() {
	var callsPerSec = w.cfg.CallsPerSec
	if callsPerSec <= 0 {
		callsPerSec = 1
	}

	tick := time.NewTicker(time.Second / time.Duration(callsPerSec))
	defer tick.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-tick.C:
			w.counters.scans.Add(1)
			if !w.overMark() {
				continue
			}
			select {
			case <-w.ctx.Done():
				return
			case w.invokeCh <- struct{}{}:
				w.counters.scanHits.Add(1)
			}
		}
	}
}

// consumer is the only goroutine evicting, so two passes never pick the same victims.
func (w *EvictionWorker) consumer() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.invokeCh:
			items, freed := w.enforce(w.ctx)
			if items > 0 {
				w.counters.evicted.Add(items)
				w.counters.freedBytes.Add(freed)
			}
		}
	}
}

func (w *EvictionWorker) overMark() bool {
	for _, n := range w.store.Nodes() {
		if n.Above(w.cfg.HighWaterMark) {
			return true
		}
	}
	return false
}

// enforce evicts baseline victims on every edge above the mark. It does
// nothing while predictive mode is on or the mode cannot be read.
func (w *EvictionWorker) enforce(ctx context.Context) (items, freed int64) {
	mode, err := w.modes.Mode(ctx)
	if err != nil {
		w.logger.Warn("evictor: read mode", "err", err)
		return 0, 0
	}
	if mode.Predictive {
		return 0, 0
	}

	for _, node := range w.store.Nodes() {
		if !node.Above(w.cfg.HighWaterMark) {
			continue
		}
		entries, err := w.store.Entries(ctx, node.ID)
		if err != nil {
			w.logger.Warn("evictor: list entries", "edge", node.ID, "err", err)
			continue
		}
		for _, victim := range baseline.Victims(node, entries, w.cfg.HighWaterMark, w.less) {
			if err = w.store.Evict(node.ID, victim.Content); err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					w.logger.Warn("evictor: evict", "edge", node.ID, "content", victim.Content, "err", err)
				}
				continue
			}
			items++
			freed += victim.Size
		}
	}
	return items, freed
}
