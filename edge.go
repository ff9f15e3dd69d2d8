// Package ashedge composes a predictive edge cache tier: the per-edge cache
// store, the request path, the decision orchestrator and their background
// workers.
package ashedge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/admission"
	"github.com/Borislavv/go-ash-edge/internal/audit"
	"github.com/Borislavv/go-ash-edge/internal/catalog"
	"github.com/Borislavv/go-ash-edge/internal/eventlog"
	"github.com/Borislavv/go-ash-edge/internal/evictor"
	"github.com/Borislavv/go-ash-edge/internal/experiment"
	"github.com/Borislavv/go-ash-edge/internal/lifetimer"
	"github.com/Borislavv/go-ash-edge/internal/metrics"
	"github.com/Borislavv/go-ash-edge/internal/orchestrator"
	"github.com/Borislavv/go-ash-edge/internal/origin"
	"github.com/Borislavv/go-ash-edge/internal/pgstore"
	"github.com/Borislavv/go-ash-edge/internal/serve"
	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/internal/store"
	"github.com/Borislavv/go-ash-edge/internal/telemetry"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

var ErrUnknownExperiment = errors.New("unknown experiment")

// Deps overrides collaborators built from configuration. Zero values mean "build from config".
type Deps struct {
	Clock      clock.Clock
	Origin     origin.Origin
	Modes      experiment.Switcher
	Registerer prometheus.Registerer
}

type Edge struct {
	cfg     *config.Tier
	logger  *slog.Logger
	clk     clock.Clock
	store   *store.Store
	path    *serve.Path
	orch    *orchestrator.Orchestrator
	modes   experiment.Switcher
	tracker *experiment.Tracker
	gate    admission.Gate

	evictor   evictor.Evictor
	lifetimer lifetimer.Lifetimer
	telemetry *telemetry.Logs

	closers []func() error
	cancel  context.CancelFunc
}

func New(ctx context.Context, cfg *config.Tier, logger *slog.Logger, deps Deps) (_ *Edge, err error) {
	ctx, cancel := context.WithCancel(ctx)
	e := &Edge{cfg: cfg, logger: logger, cancel: cancel}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	e.clk = deps.Clock
	if e.clk == nil {
		e.clk = clock.NewCached(ctx)
	}

	nodes := make([]model.EdgeNode, 0, len(cfg.Edges))
	for _, ec := range cfg.Edges {
		nodes = append(nodes, model.EdgeNode{ID: model.EdgeID(ec.ID), Region: ec.Region, Capacity: ec.Capacity})
	}
	if e.store, err = store.New(e.clk, logger, cfg.Store.ShardsPerEdge, nodes...); err != nil {
		return nil, fmt.Errorf("build edge store: %w", err)
	}

	items := make([]model.ContentItem, 0, len(cfg.Catalog))
	for _, it := range cfg.Catalog {
		items = append(items, model.ContentItem{ID: model.ContentID(it.ID), Size: it.Size, Category: it.Category, Type: it.Type})
	}

	var m metrics.Metrics = metrics.NoOp{}
	if cfg.Metrics.Enabled() {
		if m, err = metrics.NewProm(deps.Registerer, cfg.Metrics.Namespace); err != nil {
			return nil, err
		}
	}

	if e.modes = deps.Modes; e.modes == nil {
		e.modes = e.buildModes()
	}

	src := deps.Origin
	if src == nil {
		if src, err = origin.FromConfig(ctx, cfg.Origin, e.clk, logger); err != nil {
			return nil, err
		}
	}

	var (
		events    orchestrator.Events
		cat       orchestrator.Catalog
		meta      serve.Items
		sinks     []serve.Sink
		recorders []orchestrator.Recorder
	)
	if cfg.Postgres.Enabled() {
		pg, err := pgstore.Open(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() error { pg.Close(); return nil })
		if err = pg.UpsertContent(ctx, items...); err != nil {
			return nil, err
		}
		if err = adoptEdges(ctx, cfg.Orchestrator.InputTimeout, pg, e.store, logger); err != nil {
			return nil, err
		}
		events, cat, meta = pg, pg, pg
		sinks = append(sinks, pg)
		recorders = append(recorders, pg, orchestrator.RecorderFunc(func(ctx context.Context, _ model.Outcome) error {
			return pg.SyncEdges(ctx, e.store.AllStats())
		}))
	} else {
		log, mem := eventlog.New(0), catalog.New(items...)
		events, cat, meta = log, mem, mem
		sinks = append(sinks, log)
	}

	if cfg.Journal.Enabled() {
		j, err := audit.Open(cfg.Journal)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, j.Close)
		recorders = append(recorders, j)
	}

	gate := admission.New(cfg.Admission)
	e.gate = gate
	e.tracker = experiment.NewTracker(e.clk, 0)
	e.orch = orchestrator.New(cfg, e.clk, logger, orchestrator.Deps{
		Store:     e.store,
		Origin:    src,
		Events:    events,
		Catalog:   cat,
		Recorders: recorders,
		Metrics:   m,
	})
	e.path = serve.New(cfg, e.clk, logger, serve.Deps{
		Store:   e.store,
		Origin:  src,
		Items:   meta,
		Sinks:   sinks,
		Advisor: e.orch,
		Gate:    gate,
		Tracker: e.tracker,
		Metrics: m,
	})

	e.evictor = evictor.New(ctx, &cfg.Baseline, logger, e.store, e.modes)
	e.lifetimer = lifetimer.New(ctx, cfg.Lifetime, logger, e.store)

	var interval time.Duration
	if cfg.Telemetry.Enabled() {
		interval = cfg.Telemetry.Interval
	}
	e.telemetry = telemetry.New(ctx, logger, e.store, gate, e.evictor, e.lifetimer, interval)

	logger.Info("edge tier is ready", "edges", len(e.store.Nodes()), "catalog", len(items), "postgres", cfg.Postgres.Enabled(), "journal", cfg.Journal.Enabled())
	return e, nil
}

// edgeRegistry lists edge nodes known outside the local config.
type edgeRegistry interface {
	Edges(ctx context.Context) ([]model.EdgeNode, error)
}

// adoptEdges registers the active nodes of reg that the local config does not
// name. Their usage starts at zero: entries are never shared between processes.
func adoptEdges(ctx context.Context, timeout time.Duration, reg edgeRegistry, st *store.Store, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nodes, err := reg.Edges(ctx)
	if err != nil {
		return fmt.Errorf("adopt edge nodes: %w", err)
	}
	for _, n := range nodes {
		n.Usage = 0
		if err = st.AddNode(n); err != nil && !errors.Is(err, store.ErrEdgeExists) {
			logger.Warn("edge node skipped", "edge", n.ID, "err", err)
		}
	}
	return nil
}

func (e *Edge) buildModes() experiment.Switcher {
	if !e.cfg.Experiment.Redis.Enabled() {
		return experiment.NewSwitch(e.clk, e.cfg.Experiment.Predictive)
	}
	rc := e.cfg.Experiment.Redis
	client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	e.closers = append(e.closers, client.Close)
	return experiment.NewRedisSwitch(client, rc.Key, e.clk, e.cfg.Experiment.Predictive, rc.Timeout)
}

// mode reads the switch once. If it cannot be read, requests are served in
// the configured initial mode.
func (e *Edge) mode(ctx context.Context) model.Mode {
	m, err := e.modes.Mode(ctx)
	if err != nil {
		e.logger.Warn("mode switch unavailable, using configured mode", "err", err)
		return model.Mode{Predictive: e.cfg.Experiment.Predictive}
	}
	return m
}

// Lookup serves content at edge in the current mode.
func (e *Edge) Lookup(ctx context.Context, edge model.EdgeID, content model.ContentID) (serve.Result, error) {
	return e.path.Lookup(ctx, edge, content, e.mode(ctx))
}

// RunCycle runs one decision cycle in the current mode.
func (e *Edge) RunCycle(ctx context.Context) model.Outcome {
	return e.orch.Tick(ctx, e.modes)
}

// Run schedules decision cycles until ctx is done.
func (e *Edge) Run(ctx context.Context) error {
	return e.orch.Run(ctx, e.modes)
}

func (e *Edge) Mode(ctx context.Context) (model.Mode, error) {
	return e.modes.Mode(ctx)
}

// SetPredictive flips the experiment mode and starts a new experiment when
// the mode actually changes. Existing entries are kept unless
// experiment.reset_on_switch is set, in which case every edge starts cold.
func (e *Edge) SetPredictive(ctx context.Context, on bool) (model.Mode, error) {
	prev, prevErr := e.modes.Mode(ctx)
	m, err := e.modes.Set(ctx, on)
	if err != nil {
		return model.Mode{}, err
	}
	if prevErr == nil && prev.Predictive == m.Predictive {
		return m, nil
	}

	e.tracker.Follow(m)
	if e.cfg.Experiment.ResetOnSwitch {
		for _, n := range e.store.Nodes() {
			if err = e.store.Clear(n.ID); err != nil {
				return m, err
			}
		}
		e.gate.Reset()
	}
	e.logger.Info("experiment mode switched", "mode", m.String(), "reset", e.cfg.Experiment.ResetOnSwitch)
	return m, nil
}

// Clear drops every entry of edge.
func (e *Edge) Clear(edge model.EdgeID) error { return e.store.Clear(edge) }

func (e *Edge) Stats(edge model.EdgeID) (model.Stats, error) { return e.store.Stats(edge) }
func (e *Edge) AllStats() []model.Stats                      { return e.store.AllStats() }

// Entries returns a snapshot of the readable entries of edge.
func (e *Edge) Entries(ctx context.Context, edge model.EdgeID) ([]model.CachedEntry, error) {
	return e.store.Entries(ctx, edge)
}

// Experiments returns per-mode results of the traffic served so far.
func (e *Edge) Experiments() []experiment.Result { return e.tracker.Results() }

// Compare reports experiment candidate against experiment reference.
func (e *Edge) Compare(reference, candidate int64) (experiment.Comparison, error) {
	ref, ok := e.tracker.Result(reference)
	if !ok {
		return experiment.Comparison{}, fmt.Errorf("experiment %d: %w", reference, ErrUnknownExperiment)
	}
	cand, ok := e.tracker.Result(candidate)
	if !ok {
		return experiment.Comparison{}, fmt.Errorf("experiment %d: %w", candidate, ErrUnknownExperiment)
	}
	return experiment.Compare(ref, cand), nil
}

// Comparisons pairs every predictive experiment with the baseline one before it.
func (e *Edge) Comparisons() []experiment.Comparison { return e.tracker.Comparisons() }

// ForceEviction runs one baseline enforcement pass.
func (e *Edge) ForceEviction() error { return e.evictor.ForceCall(e.cfg.Orchestrator.ApplyTimeout) }

func (e *Edge) Close() error {
	e.cancel()
	var errs []error
	if e.telemetry != nil {
		errs = append(errs, e.telemetry.Close())
	}
	if e.lifetimer != nil {
		errs = append(errs, e.lifetimer.Close())
	}
	if e.evictor != nil {
		errs = append(errs, e.evictor.Close())
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}
