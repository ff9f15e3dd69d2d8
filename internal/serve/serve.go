// Package serve is the request path: lookups against the edge cache store
// with origin fills on miss.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/admission"
	"github.com/Borislavv/go-ash-edge/internal/baseline"
	"github.com/Borislavv/go-ash-edge/internal/experiment"
	"github.com/Borislavv/go-ash-edge/internal/metrics"
	"github.com/Borislavv/go-ash-edge/internal/origin"
	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/internal/store"
	"github.com/Borislavv/go-ash-edge/model"
	"golang.org/x/sync/singleflight"
)

// ErrOriginFetch means a miss could not be filled. It is never reported as a hit or a plain miss.
var ErrOriginFetch = errors.New("origin fetch failed")

// Store is the part of the edge cache store the request path uses.
type Store interface {
	Get(edge model.EdgeID, content model.ContentID) (store.Lookup, bool)
	Put(edge model.EdgeID, item model.ContentItem, payload []byte, ttl time.Duration) error
	Evict(edge model.EdgeID, content model.ContentID) error
	Node(edge model.EdgeID) (model.EdgeNode, bool)
	Entries(ctx context.Context, edge model.EdgeID) ([]model.CachedEntry, error)
}

// Sink receives one event per served request.
type Sink interface {
	Append(ctx context.Context, ev model.RequestEvent) error
}

// Items resolves content metadata.
type Items interface {
	Item(ctx context.Context, id model.ContentID) (model.ContentItem, bool, error)
}

// TTLAdvisor suggests the TTL of a predictive-mode fill.
type TTLAdvisor interface {
	FillTTL(id model.ContentID) (time.Duration, bool)
}

type Deps struct {
	Store   Store
	Origin  origin.Origin
	Items   Items
	Sinks   []Sink
	Advisor TTLAdvisor
	Gate    admission.Gate
	Tracker *experiment.Tracker
	Metrics metrics.Metrics
}

// Result of one lookup.
type Result struct {
	Payload []byte
	Hit     bool
	// Cached is false when a miss was served without being stored.
	Cached  bool
	TTL     time.Duration
	Latency time.Duration
}

type Path struct {
	cfg     *config.Tier
	clk     clock.Clock
	logger  *slog.Logger
	deps    Deps
	less    baseline.Less
	flights singleflight.Group
}

func New(cfg *config.Tier, clk clock.Clock, logger *slog.Logger, deps Deps) *Path {
	if deps.Gate == nil {
		deps.Gate = admission.New(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOp{}
	}
	return &Path{cfg: cfg, clk: clk, logger: logger, deps: deps, less: baseline.For(cfg.Baseline.Strategy)}
}

// Lookup serves content at edge in the given mode. On miss the content is
// fetched from the origin, bounded by the origin timeout, and stored with a
// TTL chosen by mode. Concurrent misses of one (edge, content) share a fetch.
func (p *Path) Lookup(ctx context.Context, edge model.EdgeID, content model.ContentID, mode model.Mode) (Result, error) {
	started := p.clk.Now()
	target := model.Target{Edge: edge, Content: content}

	if _, ok := p.deps.Store.Node(edge); !ok {
		return Result{}, fmt.Errorf("lookup %s: %w", edge, store.ErrUnknownEdge)
	}
	p.deps.Gate.Record(target)

	if hit, ok := p.deps.Store.Get(edge, content); ok {
		res := Result{Payload: hit.Payload, Hit: true, Cached: true, TTL: hit.Entry.TTL, Latency: clock.Since(p.clk, started)}
		p.observe(ctx, target, mode, res)
		p.logger.Debug("cache hit", "edge", edge, "content", content)
		return res, nil
	}

	item := p.item(ctx, content)
	payload, err := p.fetch(ctx, target, item)
	if err != nil {
		res := Result{Latency: clock.Since(p.clk, started)}
		p.observe(ctx, target, mode, res)
		p.deps.Metrics.OriginError(edge)
		p.logger.Warn("origin fetch failed", "edge", edge, "content", content, "err", err)
		return res, fmt.Errorf("%w: %s/%s: %w", ErrOriginFetch, edge, content, err)
	}

	ttl := p.fillTTL(content, mode)
	cached := p.fill(ctx, target, item, payload, ttl, mode)

	res := Result{Payload: payload, Cached: cached, TTL: ttl, Latency: clock.Since(p.clk, started)}
	p.observe(ctx, target, mode, res)
	p.logger.Debug("cache miss", "edge", edge, "content", content, "cached", cached, "ttl", ttl.String())
	return res, nil
}

// item resolves metadata; unknown content is sized by its payload.
func (p *Path) item(ctx context.Context, id model.ContentID) model.ContentItem {
	if p.deps.Items == nil {
		return model.ContentItem{ID: id}
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Serve.MetadataTimeout)
	defer cancel()

	item, ok, err := p.deps.Items.Item(ctx, id)
	if err != nil {
		p.logger.Warn("content metadata unavailable", "content", id, "err", err)
	}
	if err != nil || !ok {
		return model.ContentItem{ID: id}
	}
	return item
}

func (p *Path) fetch(ctx context.Context, target model.Target, item model.ContentItem) ([]byte, error) {
	key := string(target.Edge) + "\x00" + string(target.Content)
	ch := p.flights.DoChan(key, func() (any, error) {
		// shared by every waiter, so it must outlive the caller that started it
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Origin.Timeout)
		defer cancel()
		return p.deps.Origin.Fetch(fctx, item)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fillTTL is the fixed baseline TTL in baseline mode, and the forecast-derived
// TTL in predictive mode when a forecast exists.
func (p *Path) fillTTL(content model.ContentID, mode model.Mode) time.Duration {
	if mode.Predictive {
		if p.deps.Advisor != nil {
			if ttl, ok := p.deps.Advisor.FillTTL(content); ok {
				return ttl
			}
		}
		if p.cfg.Store.FillTTL > 0 {
			return p.cfg.Store.FillTTL
		}
	}
	return p.cfg.Baseline.DefaultTTL
}

// fill stores the payload. When the edge is full, baseline mode makes room
// from baseline victims the admission gate agrees to replace; predictive
// mode serves without caching and leaves eviction to the next cycle.
func (p *Path) fill(ctx context.Context, target model.Target, item model.ContentItem, payload []byte, ttl time.Duration, mode model.Mode) bool {
	err := p.deps.Store.Put(target.Edge, item, payload, ttl)
	if err == nil {
		return true
	}
	if !errors.Is(err, store.ErrCapacityExceeded) || mode.Predictive {
		p.logger.Debug("fill skipped", "edge", target.Edge, "content", target.Content, "err", err)
		return false
	}

	need := item.Size
	if need == 0 {
		need = int64(len(payload))
	}
	if !p.makeRoom(ctx, target, need) {
		return false
	}
	if err = p.deps.Store.Put(target.Edge, item, payload, ttl); err != nil {
		p.logger.Debug("fill skipped after eviction", "edge", target.Edge, "content", target.Content, "err", err)
		return false
	}
	return true
}

// makeRoom evicts the shortest prefix of baseline victims freeing need units,
// but only if the gate admits the candidate over every one of them.
func (p *Path) makeRoom(ctx context.Context, target model.Target, need int64) bool {
	node, ok := p.deps.Store.Node(target.Edge)
	if !ok || need > node.Capacity {
		return false
	}
	entries, err := p.deps.Store.Entries(ctx, target.Edge)
	if err != nil {
		return false
	}

	free := node.Free()
	var victims []model.CachedEntry
	for _, e := range baseline.Order(entries, p.less) {
		if free >= need {
			break
		}
		if !p.deps.Gate.Allow(target, model.Target{Edge: e.Edge, Content: e.Content}) {
			return false
		}
		victims = append(victims, e)
		free += e.Size
	}
	if free < need {
		return false
	}

	for _, v := range victims {
		if err = p.deps.Store.Evict(v.Edge, v.Content); err != nil && !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("evict victim", "edge", v.Edge, "content", v.Content, "err", err)
		}
	}
	return true
}

func (p *Path) observe(ctx context.Context, target model.Target, mode model.Mode, res Result) {
	ev := model.NewRequestEvent(target.Content, target.Edge, p.clk.Now(), res.Hit, res.Latency)
	if len(p.deps.Sinks) > 0 {
		p.record(ctx, target, ev)
	}
	if p.deps.Tracker != nil {
		p.deps.Tracker.Follow(mode)
		p.deps.Tracker.Observe(ev)
	}
	p.deps.Metrics.Request(target.Edge, mode, res.Hit, res.Latency)
}

// record writes ev to every sink under one detached deadline.
func (p *Path) record(ctx context.Context, target model.Target, ev model.RequestEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Serve.SinkTimeout)
	defer cancel()

	for _, s := range p.deps.Sinks {
		if err := s.Append(ctx, ev); err != nil {
			p.logger.Warn("record request event", "edge", target.Edge, "content", target.Content, "err", err)
		}
	}
}
