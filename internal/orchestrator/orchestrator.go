// Package orchestrator drives decision cycles: it gathers recent requests and
// metadata, forecasts demand, asks the policy engine for decisions and applies
// them to the edge cache store one by one.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/metrics"
	"github.com/Borislavv/go-ash-edge/internal/origin"
	"github.com/Borislavv/go-ash-edge/internal/policy"
	"github.com/Borislavv/go-ash-edge/internal/predictor"
	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/internal/store"
	"github.com/Borislavv/go-ash-edge/model"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInputUnavailable aborts a cycle whose request log, catalog or cache
	// snapshot could not be obtained.
	ErrInputUnavailable = errors.New("cycle inputs unavailable")

	// ErrCycleInProgress aborts a cycle started while another one is running.
	ErrCycleInProgress = errors.New("decision cycle already in progress")

	errUnknownKind = errors.New("unknown decision kind")
)

// Events yields request events of a window.
type Events interface {
	RecentEvents(ctx context.Context, w model.Window) ([]model.RequestEvent, error)
}

// Catalog yields content metadata.
type Catalog interface {
	Catalog(ctx context.Context) ([]model.ContentItem, error)
}

// Recorder persists cycle outcomes, e.g. the decision journal or postgres.
type Recorder interface {
	Record(ctx context.Context, o model.Outcome) error
}

// Store is the part of the edge cache store a cycle reads and mutates.
type Store interface {
	Nodes() []model.EdgeNode
	Node(edge model.EdgeID) (model.EdgeNode, bool)
	Resident(ctx context.Context) (map[model.EdgeID][]model.CachedEntry, error)
	Put(edge model.EdgeID, item model.ContentItem, payload []byte, ttl time.Duration) error
	Evict(edge model.EdgeID, content model.ContentID) error
	UpdateTTL(edge model.EdgeID, content model.ContentID, ttl time.Duration) error
	AllStats() []model.Stats
}

type Deps struct {
	Store     Store
	Origin    origin.Origin
	Events    Events
	Catalog   Catalog
	Recorders []Recorder
	Metrics   metrics.Metrics
}

type Orchestrator struct {
	cfg       config.OrchestratorCfg
	clk       clock.Clock
	logger    *slog.Logger
	deps      Deps
	predictor *predictor.Predictor
	policy    *policy.Engine

	running sync.Mutex // held for the whole cycle

	mu        sync.RWMutex
	forecasts map[model.ContentID]model.Forecast
	last      model.Outcome
	cycles    int64
}

func New(cfg *config.Tier, clk clock.Clock, logger *slog.Logger, deps Deps) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOp{}
	}
	return &Orchestrator{
		cfg:       cfg.Orchestrator,
		clk:       clk,
		logger:    logger,
		deps:      deps,
		predictor: predictor.New(cfg.Predictor, logger),
		policy:    policy.New(cfg.Policy, logger),
		forecasts: make(map[model.ContentID]model.Forecast),
	}
}

// inputs is one consistent snapshot read at cycle start.
type inputs struct {
	events   []model.RequestEvent
	catalog  []model.ContentItem
	nodes    []model.EdgeNode
	resident map[model.EdgeID][]model.CachedEntry
}

// RunCycle runs one decision cycle in the given mode. It never returns a bare
// empty result: the outcome status tells ran, skipped and aborted apart.
func (o *Orchestrator) RunCycle(ctx context.Context, mode model.Mode) model.Outcome {
	started := model.Normalize(o.clk.Now())
	out := model.Outcome{Mode: mode, StartedAt: started, Window: model.WindowEndingAt(started, o.cfg.Window)}

	if !o.running.TryLock() {
		out.Status, out.Err, out.FinishedAt = model.StatusAborted, ErrCycleInProgress, started
		o.logger.Warn("decision cycle aborted", "err", out.Err)
		return out
	}
	defer o.running.Unlock()

	if !mode.Predictive {
		out.Status, out.FinishedAt = model.StatusSkipped, started
		return o.finish(ctx, out)
	}

	in, err := o.gather(ctx, out.Window)
	if err != nil {
		out.Status, out.Err = model.StatusAborted, err
		out.FinishedAt = model.Normalize(o.clk.Now())
		return o.finish(ctx, out)
	}

	forecasts, err := o.predictor.ForecastAll(ctx, in.events, out.Window, in.catalog)
	if err != nil {
		out.Status, out.Err = model.StatusAborted, fmt.Errorf("forecast: %w", err)
		out.FinishedAt = model.Normalize(o.clk.Now())
		return o.finish(ctx, out)
	}
	out.Forecasts = forecasts

	decisions := o.policy.Decide(policy.Input{
		Now:       started,
		Forecasts: forecasts,
		Catalog:   in.catalog,
		Nodes:     in.nodes,
		Resident:  in.resident,
		Requests:  requestCounts(in.events),
	})

	out.Results, out.Report = o.apply(ctx, decisions, in.catalog)
	out.Status = model.StatusRan
	out.FinishedAt = model.Normalize(o.clk.Now())

	o.mu.Lock()
	o.forecasts = make(map[model.ContentID]model.Forecast, len(forecasts))
	for _, f := range forecasts {
		o.forecasts[f.ContentID] = f
	}
	o.mu.Unlock()

	return o.finish(ctx, out)
}

// gather reads every input concurrently under the input timeout. Any failure
// aborts the cycle, no partial input set is used.
func (o *Orchestrator) gather(ctx context.Context, w model.Window) (inputs, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.InputTimeout)
	defer cancel()

	var in inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if in.events, err = o.deps.Events.RecentEvents(gctx, w); err != nil {
			return fmt.Errorf("recent events: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if in.catalog, err = o.deps.Catalog.Catalog(gctx); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if in.resident, err = o.deps.Store.Resident(gctx); err != nil {
			return fmt.Errorf("resident entries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return inputs{}, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}
	in.nodes = o.deps.Store.Nodes()
	return in, nil
}

// apply attempts every decision in order. A failed decision never stops the
// rest; after cancellation the remaining ones are reported failed untouched.
func (o *Orchestrator) apply(ctx context.Context, decisions []model.Decision, catalog []model.ContentItem) ([]model.DecisionResult, model.Report) {
	items := make(map[model.ContentID]model.ContentItem, len(catalog))
	for _, it := range catalog {
		items[it.ID] = it
	}

	var report model.Report
	results := make([]model.DecisionResult, 0, len(decisions))
	for _, d := range decisions {
		err := ctx.Err()
		if err == nil {
			err = o.applyOne(ctx, d, items)
		}
		if err == nil {
			d = d.MarkApplied(o.clk.Now())
		} else {
			o.logger.Debug("decision failed", "decision", d.String(), "err", err)
		}
		report.Add(d.Kind(), err)
		results = append(results, model.DecisionResult{Decision: d, Err: err})
	}
	return results, report
}

func (o *Orchestrator) applyOne(ctx context.Context, d model.Decision, items map[model.ContentID]model.ContentItem) error {
	switch d.Kind() {
	case model.KindPrefetch:
		return o.prefetch(ctx, d, items)
	case model.KindEvict:
		return o.deps.Store.Evict(d.Edge(), d.Content())
	case model.KindTTLUpdate:
		ttl, _ := d.TTL()
		return o.deps.Store.UpdateTTL(d.Edge(), d.Content(), ttl)
	default:
		return fmt.Errorf("%w: %s", errUnknownKind, d.Kind())
	}
}

// prefetch checks free capacity before going to the origin; the put itself
// still enforces capacity atomically.
func (o *Orchestrator) prefetch(ctx context.Context, d model.Decision, items map[model.ContentID]model.ContentItem) error {
	item, ok := items[d.Content()]
	if !ok {
		item = model.ContentItem{ID: d.Content(), Size: d.Size()}
	}
	if node, ok := o.deps.Store.Node(d.Edge()); ok && item.Size > node.Free() {
		return fmt.Errorf("prefetch %s to %s: %w", item.ID, d.Edge(), store.ErrCapacityExceeded)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.ApplyTimeout)
	defer cancel()

	payload, err := o.deps.Origin.Fetch(ctx, item)
	if err != nil {
		return fmt.Errorf("prefetch %s: origin fetch: %w", item.ID, err)
	}
	ttl, _ := d.TTL()
	return o.deps.Store.Put(d.Edge(), item, payload, ttl)
}

// finish publishes the outcome to metrics, recorders and the log.
func (o *Orchestrator) finish(ctx context.Context, out model.Outcome) model.Outcome {
	o.mu.Lock()
	o.last = out
	o.cycles++
	o.mu.Unlock()

	o.deps.Metrics.Cycle(out)
	o.deps.Metrics.Stats(o.deps.Store.AllStats())

	if len(o.deps.Recorders) > 0 {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ApplyTimeout)
		for _, r := range o.deps.Recorders {
			if err := r.Record(rctx, out); err != nil {
				o.logger.Warn("record decision cycle", "status", out.Status.String(), "err", err)
			}
		}
		cancel()
	}

	attrs := []any{
		"status", out.Status.String(),
		"mode", out.Mode.String(),
		"elapsed", out.FinishedAt.Sub(out.StartedAt).String(),
	}
	switch out.Status {
	case model.StatusRan:
		attrs = append(attrs,
			"forecasts", len(out.Forecasts),
			"decisions", len(out.Results),
			"prefetch_applied", out.Report.Prefetch.Applied, "prefetch_failed", out.Report.Prefetch.Failed,
			"evict_applied", out.Report.Evict.Applied, "evict_failed", out.Report.Evict.Failed,
			"ttl_update_applied", out.Report.TTLUpdate.Applied, "ttl_update_failed", out.Report.TTLUpdate.Failed,
		)
		o.logger.Info("decision cycle", attrs...)
	case model.StatusAborted:
		o.logger.Warn("decision cycle", append(attrs, "err", out.Err)...)
	default:
		o.logger.Info("decision cycle", attrs...)
	}
	return out
}

// Forecast returns the forecast of id computed by the last ran cycle.
func (o *Orchestrator) Forecast(id model.ContentID) (model.Forecast, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.forecasts[id]
	return f, ok
}

// FillTTL advises the TTL of a request-path fill in predictive mode from the
// last forecast of id.
func (o *Orchestrator) FillTTL(id model.ContentID) (time.Duration, bool) {
	f, ok := o.Forecast(id)
	if !ok {
		return 0, false
	}
	return o.policy.TTLFor(f.Predicted), true
}

// LastOutcome returns the outcome of the last finished cycle and how many cycles finished.
func (o *Orchestrator) LastOutcome() (model.Outcome, int64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last, o.cycles
}

func requestCounts(events []model.RequestEvent) map[model.ContentID]int64 {
	counts := make(map[model.ContentID]int64)
	for _, ev := range events {
		counts[ev.ContentID]++
	}
	return counts
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, o model.Outcome) error

func (f RecorderFunc) Record(ctx context.Context, o model.Outcome) error { return f(ctx, o) }
