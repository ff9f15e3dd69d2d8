package lifetimer

import (
	"context"
	"log/slog"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/shared/rate"
)

// Store is the part of the edge cache store that knows about expired entries.
type Store interface {
	Sweep(ctx context.Context) (queued int)
	Reclaim(ctx context.Context) (entries, freed int64)
}

type Lifetimer interface {
	Metrics() (reclaimed, freed, scans, hits, misses int64)
	Close() error
}

// LifetimeWorker reclaims expired entries in the background so that their
// size is released even if nobody looks them up again.
type LifetimeWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.LifetimerCfg
	store    Store
	logger   *slog.Logger
	jitter   *rate.Jitter
	counters *lifetimerCounters
	invokeCh chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.LifetimerCfg,
	logger *slog.Logger,
	store Store,
) Lifetimer {
	if !cfg.Enabled() {
		return &NoOpLifetimer{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&LifetimeWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		store:    store,
		logger:   logger,
		jitter:   rate.NewJitter(ctx, cfg.Rate),
		counters: newLifetimerCounters(),
		invokeCh: make(chan struct{}, 1),
	}).run()
}

func (w *LifetimeWorker) Metrics() (reclaimed, freed, scans, hits, misses int64) {
	return w.counters.snapshot()
}

func (w *LifetimeWorker) Close() error {
	w.cancel()
	return nil
}

func (w *LifetimeWorker) run() *LifetimeWorker {
	w.logger.Info("lifetimer is running", "rate", w.cfg.Rate)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.consumer()
	}()
	go func() {
		defer w.logger.Info("lifetimer is stopped")
		w.provider()
		<-done
	}()

	return w
}

// provider sweeps one shard per edge on every permit and wakes the consumer
// when something expired was queued.
func (w *LifetimeWorker) provider() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case _, ok := <-w.jitter.Chan():
			if !ok {
				return
			}
			w.counters.scans.Add(1)
			if w.store.Sweep(w.ctx) == 0 {
				w.counters.scanMisses.Add(1)
				continue
			}
			w.counters.scanHits.Add(1)

			// a pending wake-up already covers this sweep
			select {
			case w.invokeCh <- struct{}{}:
			default:
			}
		}
	}
}

func (w *LifetimeWorker) consumer() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.invokeCh:
			entries, freed := w.store.Reclaim(w.ctx)
			w.counters.reclaimed.Add(entries)
			w.counters.freed.Add(freed)
		}
	}
}
