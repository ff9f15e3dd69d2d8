package experiment

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/model"
)

const defaultLatencySamples = 1 << 16

// Experiment is one activation of a mode.
type Experiment struct {
	ID        int64
	Mode      model.Mode
	StartedAt time.Time
	EndedAt   time.Time // zero while running
}

// Result summarizes the traffic observed during one experiment.
type Result struct {
	Experiment     Experiment
	Requests       int64
	Hits           int64
	Misses         int64
	HitRatio       float64
	AvgLatency     time.Duration
	AvgHitLatency  time.Duration
	AvgMissLatency time.Duration
	P50            time.Duration
	P95            time.Duration
	P99            time.Duration
}

// Comparison reports how a candidate experiment did against a reference one.
type Comparison struct {
	Reference Result
	Candidate Result
	// HitRatioGain is the difference in percentage points.
	HitRatioGain float64
	// LatencyReduction is the relative drop of average latency, 0.25 means 25% faster.
	LatencyReduction float64
}

type run struct {
	exp         Experiment
	hits        int64
	misses      int64
	hitLatency  time.Duration
	missLatency time.Duration
	samples     []time.Duration
	next        int
}

// Tracker attributes request events to the running experiment.
type Tracker struct {
	mu         sync.Mutex
	clk        clock.Clock
	maxSamples int
	lastID     int64
	current    *run
	finished   []*run
}

func NewTracker(clk clock.Clock, maxSamples int) *Tracker {
	if maxSamples <= 0 {
		maxSamples = defaultLatencySamples
	}
	return &Tracker{clk: clk, maxSamples: maxSamples}
}

// Start ends the running experiment, if any, and starts a new one for mode.
func (t *Tracker) Start(mode model.Mode) Experiment {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := model.Normalize(t.clk.Now())
	if t.current != nil {
		t.current.exp.EndedAt = now
		t.finished = append(t.finished, t.current)
	}
	started := mode.ActivatedAt
	if started.IsZero() {
		started = now
	}
	t.lastID++
	t.current = &run{exp: Experiment{ID: t.lastID, Mode: mode, StartedAt: model.Normalize(started)}}
	return t.current.exp
}

// Follow starts a new experiment when mode differs from the running one's.
func (t *Tracker) Follow(mode model.Mode) {
	t.mu.Lock()
	cur := t.current
	t.mu.Unlock()
	if cur != nil && cur.exp.Mode.Predictive == mode.Predictive && cur.exp.Mode.ActivatedAt.Equal(mode.ActivatedAt) {
		return
	}
	t.Start(mode)
}

// Current returns the running experiment.
func (t *Tracker) Current() (Experiment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Experiment{}, false
	}
	return t.current.exp, true
}

// Observe attributes ev to the running experiment. Events before any Start are dropped.
func (t *Tracker) Observe(ev model.RequestEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.current
	if r == nil {
		return
	}
	if ev.Hit {
		r.hits++
		r.hitLatency += ev.Latency
	} else {
		r.misses++
		r.missLatency += ev.Latency
	}
	if len(r.samples) < t.maxSamples {
		r.samples = append(r.samples, ev.Latency)
		return
	}
	r.samples[r.next] = ev.Latency
	r.next = (r.next + 1) % t.maxSamples
}

// Results returns summaries of all experiments, oldest first.
func (t *Tracker) Results() []Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Result, 0, len(t.finished)+1)
	for _, r := range t.finished {
		out = append(out, r.result())
	}
	if t.current != nil {
		out = append(out, t.current.result())
	}
	return out
}

// Result returns the summary of experiment id.
func (t *Tracker) Result(id int64) (Result, bool) {
	for _, r := range t.Results() {
		if r.Experiment.ID == id {
			return r, true
		}
	}
	return Result{}, false
}

func (r *run) result() Result {
	res := Result{Experiment: r.exp, Hits: r.hits, Misses: r.misses, Requests: r.hits + r.misses}
	if res.Requests == 0 {
		return res
	}
	res.HitRatio = float64(r.hits) / float64(res.Requests)
	res.AvgLatency = (r.hitLatency + r.missLatency) / time.Duration(res.Requests)
	if r.hits > 0 {
		res.AvgHitLatency = r.hitLatency / time.Duration(r.hits)
	}
	if r.misses > 0 {
		res.AvgMissLatency = r.missLatency / time.Duration(r.misses)
	}

	sorted := slices.Clone(r.samples)
	slices.Sort(sorted)
	res.P50 = percentile(sorted, 0.50)
	res.P95 = percentile(sorted, 0.95)
	res.P99 = percentile(sorted, 0.99)
	return res
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

// Compare reports candidate against reference.
func Compare(reference, candidate Result) Comparison {
	c := Comparison{
		Reference:    reference,
		Candidate:    candidate,
		HitRatioGain: (candidate.HitRatio - reference.HitRatio) * 100,
	}
	if reference.AvgLatency > 0 {
		c.LatencyReduction = float64(reference.AvgLatency-candidate.AvgLatency) / float64(reference.AvgLatency)
	}
	return c
}

// Comparisons pairs every predictive experiment with traffic against the
// latest baseline experiment with traffic that ran before it.
func (t *Tracker) Comparisons() []Comparison {
	var (
		out       []Comparison
		reference *Result
	)
	for _, r := range t.Results() {
		if r.Requests == 0 {
			continue
		}
		if !r.Experiment.Mode.Predictive {
			reference = &r
			continue
		}
		if reference != nil {
			out = append(out, Compare(*reference, r))
		}
	}
	return out
}
