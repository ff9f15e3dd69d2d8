package model

import "time"

type Status uint8

const (
	StatusRan Status = iota + 1
	StatusSkipped
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusRan:
		return "ran"
	case StatusSkipped:
		return "skipped"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type KindCounts struct {
	Applied int
	Failed  int
}

// Report holds per-kind application counts of one cycle.
type Report struct {
	Prefetch  KindCounts
	Evict     KindCounts
	TTLUpdate KindCounts
}

func (r *Report) counts(kind DecisionKind) *KindCounts {
	switch kind {
	case KindPrefetch:
		return &r.Prefetch
	case KindEvict:
		return &r.Evict
	case KindTTLUpdate:
		return &r.TTLUpdate
	default:
		return nil
	}
}

// Add accounts one applied (err == nil) or failed decision.
func (r *Report) Add(kind DecisionKind, err error) {
	c := r.counts(kind)
	if c == nil {
		return
	}
	if err != nil {
		c.Failed++
	} else {
		c.Applied++
	}
}

// For returns the counts of kind.
func (r Report) For(kind DecisionKind) KindCounts {
	if c := r.counts(kind); c != nil {
		return *c
	}
	return KindCounts{}
}

func (r Report) Applied() int { return r.Prefetch.Applied + r.Evict.Applied + r.TTLUpdate.Applied }
func (r Report) Failed() int  { return r.Prefetch.Failed + r.Evict.Failed + r.TTLUpdate.Failed }

// DecisionResult pairs a decision with its application error, if any.
type DecisionResult struct {
	Decision Decision
	Err      error
}

// Outcome is the structured result of one decision cycle. A skipped outcome
// has no forecasts and no results; an aborted one carries Err.
type Outcome struct {
	Status     Status
	Mode       Mode
	StartedAt  time.Time
	FinishedAt time.Time
	Window     Window
	Forecasts  []Forecast
	Results    []DecisionResult
	Report     Report
	Err        error
}

// Decisions returns the decisions of the cycle in application order, with
// AppliedAt set on the successful ones.
func (o Outcome) Decisions() []Decision {
	out := make([]Decision, 0, len(o.Results))
	for _, r := range o.Results {
		out = append(out, r.Decision)
	}
	return out
}
