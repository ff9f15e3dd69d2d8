package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/Borislavv/go-ash-edge/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Prom exports Prometheus collectors. All methods are safe for concurrent use.
type Prom struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	originErrors *prometheus.CounterVec
	cycles       *prometheus.CounterVec
	cycleTime    prometheus.Histogram
	decisions    *prometheus.CounterVec
	entries      *prometheus.GaugeVec
	bytesUsed    *prometheus.GaugeVec
	capacity     *prometheus.GaugeVec
}

// NewProm registers collectors on reg (nil means the default registerer).
// Collectors already registered by an earlier Prom with the same namespace
// are shared rather than rejected.
func NewProm(reg prometheus.Registerer, namespace string) (*Prom, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Served lookups by edge, mode and result",
		}, []string{"edge", "mode", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Lookup latency by result",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"result"}),
		originErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "origin_errors_total",
			Help:      "Failed origin fills",
		}, []string{"edge"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_cycles_total",
			Help:      "Decision cycles by status",
		}, []string{"status"}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_cycle_duration_seconds",
			Help:      "Wall time of ran decision cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Applied and failed decisions by kind",
		}, []string{"kind", "result"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "edge_entries",
			Help:      "Resident entries per edge",
		}, []string{"edge"}),
		bytesUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "edge_used_units",
			Help:      "Used capacity per edge",
		}, []string{"edge"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "edge_capacity_units",
			Help:      "Capacity per edge",
		}, []string{"edge"}),
	}
	var err error
	p.requests = register(reg, p.requests, &err)
	p.latency = register(reg, p.latency, &err)
	p.originErrors = register(reg, p.originErrors, &err)
	p.cycles = register(reg, p.cycles, &err)
	p.cycleTime = register(reg, p.cycleTime, &err)
	p.decisions = register(reg, p.decisions, &err)
	p.entries = register(reg, p.entries, &err)
	p.bytesUsed = register(reg, p.bytesUsed, &err)
	p.capacity = register(reg, p.capacity, &err)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// register returns c, or the identical collector registered before it.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, err *error) C {
	if *err != nil {
		return c
	}
	regErr := reg.Register(c)
	if regErr == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(regErr, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	*err = fmt.Errorf("register metrics: %w", regErr)
	return c
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (p *Prom) Request(edge model.EdgeID, mode model.Mode, hit bool, latency time.Duration) {
	p.requests.WithLabelValues(string(edge), mode.String(), result(hit)).Inc()
	p.latency.WithLabelValues(result(hit)).Observe(latency.Seconds())
}

func (p *Prom) OriginError(edge model.EdgeID) {
	p.originErrors.WithLabelValues(string(edge)).Inc()
}

func (p *Prom) Cycle(o model.Outcome) {
	p.cycles.WithLabelValues(o.Status.String()).Inc()
	if o.Status != model.StatusRan {
		return
	}
	p.cycleTime.Observe(o.FinishedAt.Sub(o.StartedAt).Seconds())
	for _, kind := range model.Kinds {
		c := o.Report.For(kind)
		p.decisions.WithLabelValues(kind.String(), "applied").Add(float64(c.Applied))
		p.decisions.WithLabelValues(kind.String(), "failed").Add(float64(c.Failed))
	}
}

func (p *Prom) Stats(stats []model.Stats) {
	for _, s := range stats {
		p.entries.WithLabelValues(string(s.Edge)).Set(float64(s.Count))
		p.bytesUsed.WithLabelValues(string(s.Edge)).Set(float64(s.BytesUsed))
		p.capacity.WithLabelValues(string(s.Edge)).Set(float64(s.Capacity))
	}
}

var _ Metrics = (*Prom)(nil)
