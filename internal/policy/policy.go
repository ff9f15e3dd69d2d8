// Package policy turns forecasts and a snapshot of cache state into an
// ordered, deduplicated list of decisions. It never mutates cache state.
package policy

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/model"
)

// Input is everything one evaluation reads.
type Input struct {
	Now       time.Time
	Forecasts []model.Forecast
	Catalog   []model.ContentItem
	Nodes     []model.EdgeNode

	// Resident holds the readable entries per edge.
	Resident map[model.EdgeID][]model.CachedEntry

	// Requests counts requests per content in the window; drives the fallback prefetch.
	Requests map[model.ContentID]int64
}

type Engine struct {
	cfg    config.PolicyCfg
	logger *slog.Logger
}

func New(cfg config.PolicyCfg, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Decide evaluates in and returns decisions in application order: priority
// descending, evictions before other kinds on equal priority, then predicted
// demand, then edge and content id. At most one decision targets any (edge, content) pair, and an
// eviction always wins over a prefetch or ttl update of the same pair.
func (e *Engine) Decide(in Input) []model.Decision {
	now := model.Normalize(in.Now)

	forecasts := make(map[model.ContentID]model.Forecast, len(in.Forecasts))
	for _, f := range in.Forecasts {
		forecasts[f.ContentID] = f
	}
	catalog := make(map[model.ContentID]model.ContentItem, len(in.Catalog))
	for _, it := range in.Catalog {
		catalog[it.ID] = it
	}
	nodes := append([]model.EdgeNode(nil), in.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	planned := make(map[model.Target]model.Decision)
	prefetches := 0

	for _, node := range nodes {
		resident := make(map[model.ContentID]struct{}, len(in.Resident[node.ID]))
		for _, ce := range in.Resident[node.ID] {
			resident[ce.Content] = struct{}{}
			e.planResident(planned, node, ce, forecasts[ce.Content], now)
		}

		for _, f := range in.Forecasts {
			if _, ok := resident[f.ContentID]; ok {
				continue
			}
			if f.Predicted < e.cfg.PrefetchThreshold || f.Confidence < e.cfg.ConfidenceFloor {
				continue
			}
			item, ok := catalog[f.ContentID]
			if !ok {
				e.logger.Debug("prefetch skipped: unknown content", "content", f.ContentID)
				continue
			}
			if item.Size > node.Free() {
				e.logger.Debug("prefetch skipped: no free capacity", "edge", node.ID, "content", item.ID, "size", item.Size, "free", node.Free())
				continue
			}
			d, err := model.NewPrefetch(node.ID, item, e.TTLFor(f.Predicted), e.capPriority(2*f.Predicted), f.Predicted, now)
			if e.add(planned, d, err) {
				prefetches++
			}
		}
	}

	if prefetches == 0 && e.cfg.IsFallbackPrefetch {
		e.planFallback(planned, nodes, in, catalog, now)
	}

	return Order(planned)
}

func (e *Engine) planResident(planned map[model.Target]model.Decision, node model.EdgeNode, ce model.CachedEntry, f model.Forecast, now time.Time) {
	if f.Predicted <= e.cfg.EvictionThreshold {
		priority := e.cfg.MaxPriority - int(f.Predicted) + e.pressureBoost(node)
		reason := "low_demand"
		if node.Above(e.cfg.HighWaterMark) {
			reason = "low_demand_under_pressure"
		}
		d, err := model.NewEvict(node.ID, ce.Content, priority, f.Predicted, reason, now)
		e.add(planned, d, err)
		return
	}

	ttl := e.TTLFor(f.Predicted)
	if !e.significant(ce.TTL, ttl) {
		return
	}
	d, err := model.NewTTLUpdate(node.ID, ce.Content, ttl, e.capPriority(f.Predicted), f.Predicted, now)
	e.add(planned, d, err)
}

// planFallback prefetches the most requested content of the window to every
// edge that lacks it and has room for it.
func (e *Engine) planFallback(planned map[model.Target]model.Decision, nodes []model.EdgeNode, in Input, catalog map[model.ContentID]model.ContentItem, now time.Time) {
	var (
		top   model.ContentID
		count int64
	)
	for id, n := range in.Requests {
		if n > count || (n == count && id < top) {
			top, count = id, n
		}
	}
	if count == 0 {
		return
	}
	item, ok := catalog[top]
	if !ok {
		return
	}

	ttl := e.scaledMaxTTL(0.3)
	for _, node := range nodes {
		if residentAt(in.Resident[node.ID], top) || item.Size > node.Free() {
			continue
		}
		d, err := model.NewPrefetch(node.ID, item, ttl, e.capPriority(2*count), count, now)
		if e.add(planned, d, err) {
			e.logger.Info("fallback prefetch planned", "edge", node.ID, "content", top, "requests", count)
		}
	}
}

// TTLFor maps predicted demand to a TTL tier relative to the reference count,
// clamped to [MinTTL, MaxTTL].
func (e *Engine) TTLFor(predicted int64) time.Duration {
	var (
		ref    = float64(e.cfg.ReferenceRequests)
		p      = float64(predicted)
		factor float64
	)
	switch {
	case p > ref:
		factor = 1
	case p > 0.4*ref:
		factor = 0.7
	case p > 0.2*ref:
		factor = 0.5
	default:
		factor = 0.3
	}
	return e.scaledMaxTTL(factor)
}

// scaledMaxTTL returns factor*MaxTTL rounded to whole seconds and clamped.
func (e *Engine) scaledMaxTTL(factor float64) time.Duration {
	secs := math.Round(e.cfg.MaxTTL.Seconds() * factor)
	return e.clampTTL(time.Duration(secs) * time.Second)
}

func (e *Engine) clampTTL(ttl time.Duration) time.Duration {
	if ttl < e.cfg.MinTTL {
		return e.cfg.MinTTL
	}
	if ttl > e.cfg.MaxTTL {
		return e.cfg.MaxTTL
	}
	return ttl
}

// significant reports whether next differs from cur by more than MinTTLChange of cur.
func (e *Engine) significant(cur, next time.Duration) bool {
	delta := math.Abs(float64(next - cur))
	return delta > e.cfg.MinTTLChange*float64(cur)
}

// pressureBoost grows with the overshoot of usage above the high-water mark.
func (e *Engine) pressureBoost(node model.EdgeNode) int {
	if node.Capacity <= 0 || !node.Above(e.cfg.HighWaterMark) {
		return 0
	}
	over := float64(node.Usage)/float64(node.Capacity) - e.cfg.HighWaterMark
	return int(math.Ceil(over * float64(e.cfg.MaxPriority)))
}

func (e *Engine) capPriority(v int64) int {
	if v > int64(e.cfg.MaxPriority) {
		return e.cfg.MaxPriority
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

// add records d unless it loses the precedence rule against an already
// planned decision for the same target.
func (e *Engine) add(planned map[model.Target]model.Decision, d model.Decision, err error) bool {
	if err != nil {
		e.logger.Warn("decision rejected", "err", err)
		return false
	}
	if cur, ok := planned[d.Key()]; ok && !wins(d, cur) {
		return false
	}
	planned[d.Key()] = d
	return true
}

func wins(d, over model.Decision) bool {
	if d.Kind() == model.KindEvict || over.Kind() == model.KindEvict {
		return d.Kind() == model.KindEvict && over.Kind() != model.KindEvict
	}
	return d.Priority() > over.Priority()
}

func residentAt(entries []model.CachedEntry, id model.ContentID) bool {
	for _, ce := range entries {
		if ce.Content == id {
			return true
		}
	}
	return false
}

func kindRank(k model.DecisionKind) int {
	switch k {
	case model.KindEvict:
		return 0
	case model.KindTTLUpdate:
		return 1
	default:
		return 2
	}
}

// Order flattens planned decisions into application order.
func Order(planned map[model.Target]model.Decision) []model.Decision {
	out := make([]model.Decision, 0, len(planned))
	for _, d := range planned {
		out = append(out, d)
	}
	Sort(out)
	return out
}

// Sort orders decisions by priority desc, evictions first on ties, then by
// predicted demand (coldest evictions first, hottest loads first), then edge
// and content. Priorities saturate at MaxPriority, so the demand tie-break
// keeps the order monotonic in popularity.
func Sort(ds []model.Decision) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Priority() != b.Priority() {
			return a.Priority() > b.Priority()
		}
		if ra, rb := kindRank(a.Kind()), kindRank(b.Kind()); ra != rb {
			return ra < rb
		}
		if a.Predicted() != b.Predicted() {
			if a.Kind() == model.KindEvict {
				return a.Predicted() < b.Predicted()
			}
			return a.Predicted() > b.Predicted()
		}
		if a.Edge() != b.Edge() {
			return a.Edge() < b.Edge()
		}
		return a.Content() < b.Content()
	})
}
