package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDecision is returned when a decision is constructed with fields
// that are not valid for its kind.
var ErrInvalidDecision = errors.New("invalid decision")

type DecisionKind uint8

const (
	KindPrefetch DecisionKind = iota + 1
	KindEvict
	KindTTLUpdate
)

// Kinds lists every decision kind in reporting order.
var Kinds = [...]DecisionKind{KindPrefetch, KindEvict, KindTTLUpdate}

func (k DecisionKind) String() string {
	switch k {
	case KindPrefetch:
		return "prefetch"
	case KindEvict:
		return "evict"
	case KindTTLUpdate:
		return "ttl_update"
	default:
		return "unknown"
	}
}

// ParseDecisionKind is the inverse of DecisionKind.String.
func ParseDecisionKind(s string) (DecisionKind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidDecision, s)
}

// Decision is a proposed cache mutation. Its fields are only reachable through
// accessors; the kind-specific constructors guarantee that a prefetch and a
// ttl_update always carry a positive TTL and that an evict never carries one.
type Decision struct {
	kind      DecisionKind
	content   ContentID
	edge      EdgeID
	size      int64
	ttl       time.Duration
	priority  int
	predicted int64
	reason    string
	createdAt time.Time
	appliedAt time.Time
}

// NewPrefetch proposes loading content of the given size into edge for ttl.
func NewPrefetch(edge EdgeID, item ContentItem, ttl time.Duration, priority int, predicted int64, now time.Time) (Decision, error) {
	if err := validateTarget(edge, item.ID); err != nil {
		return Decision{}, err
	}
	if ttl <= 0 {
		return Decision{}, fmt.Errorf("%w: prefetch %s@%s requires a positive ttl", ErrInvalidDecision, item.ID, edge)
	}
	if item.Size < 0 {
		return Decision{}, fmt.Errorf("%w: prefetch %s@%s has negative size", ErrInvalidDecision, item.ID, edge)
	}
	return Decision{
		kind:      KindPrefetch,
		content:   item.ID,
		edge:      edge,
		size:      item.Size,
		ttl:       ttl,
		priority:  priority,
		predicted: predicted,
		reason:    "predicted_demand",
		createdAt: Normalize(now),
	}, nil
}

// NewEvict proposes removing content from edge.
func NewEvict(edge EdgeID, content ContentID, priority int, predicted int64, reason string, now time.Time) (Decision, error) {
	if err := validateTarget(edge, content); err != nil {
		return Decision{}, err
	}
	if reason == "" {
		reason = "low_demand"
	}
	return Decision{
		kind:      KindEvict,
		content:   content,
		edge:      edge,
		priority:  priority,
		predicted: predicted,
		reason:    reason,
		createdAt: Normalize(now),
	}, nil
}

// NewTTLUpdate proposes retuning the TTL of a resident entry.
func NewTTLUpdate(edge EdgeID, content ContentID, ttl time.Duration, priority int, predicted int64, now time.Time) (Decision, error) {
	if err := validateTarget(edge, content); err != nil {
		return Decision{}, err
	}
	if ttl <= 0 {
		return Decision{}, fmt.Errorf("%w: ttl_update %s@%s requires a positive ttl", ErrInvalidDecision, content, edge)
	}
	return Decision{
		kind:      KindTTLUpdate,
		content:   content,
		edge:      edge,
		ttl:       ttl,
		priority:  priority,
		predicted: predicted,
		reason:    "popularity_retune",
		createdAt: Normalize(now),
	}, nil
}

func validateTarget(edge EdgeID, content ContentID) error {
	if edge == "" {
		return fmt.Errorf("%w: empty edge", ErrInvalidDecision)
	}
	if content == "" {
		return fmt.Errorf("%w: empty content id", ErrInvalidDecision)
	}
	return nil
}

func (d Decision) Kind() DecisionKind   { return d.kind }
func (d Decision) Content() ContentID   { return d.content }
func (d Decision) Edge() EdgeID         { return d.edge }
func (d Decision) Priority() int        { return d.priority }
func (d Decision) Predicted() int64     { return d.predicted }
func (d Decision) Reason() string       { return d.reason }
func (d Decision) CreatedAt() time.Time { return d.createdAt }
func (d Decision) AppliedAt() time.Time { return d.appliedAt }

// Size is the expected payload size of a prefetch; zero for other kinds.
func (d Decision) Size() int64 { return d.size }

// TTL returns the decision TTL. ok is false for evictions.
func (d Decision) TTL() (ttl time.Duration, ok bool) {
	return d.ttl, d.kind != KindEvict
}

// Applied reports whether the decision was successfully applied.
func (d Decision) Applied() bool { return !d.appliedAt.IsZero() }

// MarkApplied returns a copy of d stamped with the application time.
func (d Decision) MarkApplied(at time.Time) Decision {
	d.appliedAt = Normalize(at)
	return d
}

// Key identifies the (edge, content) pair a decision targets.
func (d Decision) Key() Target { return Target{Edge: d.edge, Content: d.content} }

func (d Decision) String() string {
	if d.kind == KindEvict {
		return fmt.Sprintf("%s %s@%s prio=%d", d.kind, d.content, d.edge, d.priority)
	}
	return fmt.Sprintf("%s %s@%s ttl=%s prio=%d", d.kind, d.content, d.edge, d.ttl, d.priority)
}

// Target is an (edge, content) cache address.
type Target struct {
	Edge    EdgeID
	Content ContentID
}
