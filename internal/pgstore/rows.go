package pgstore

import (
	"time"

	"github.com/Borislavv/go-ash-edge/model"
)

// decisionRow is one ai_decisions record; nil pointers become NULL.
type decisionRow struct {
	kind         string
	content      string
	edge         string
	ttlSeconds   *int32
	priority     int
	reason       string
	predicted    int64
	createdAt    time.Time
	appliedAt    *time.Time
	err          *string
	experimentID *int64
}

func newDecisionRow(r model.DecisionResult, experimentID *int64) decisionRow {
	d := r.Decision
	row := decisionRow{
		kind:         d.Kind().String(),
		content:      string(d.Content()),
		edge:         string(d.Edge()),
		priority:     d.Priority(),
		reason:       d.Reason(),
		predicted:    d.Predicted(),
		createdAt:    model.Normalize(d.CreatedAt()),
		experimentID: experimentID,
	}
	if ttl, ok := d.TTL(); ok {
		secs := int32(ttl / time.Second)
		row.ttlSeconds = &secs
	}
	if d.Applied() {
		at := model.Normalize(d.AppliedAt())
		row.appliedAt = &at
	}
	if r.Err != nil {
		msg := r.Err.Error()
		row.err = &msg
	}
	return row
}

func (r decisionRow) args() []any {
	return []any{r.kind, r.content, r.edge, r.ttlSeconds, r.priority, r.reason, r.predicted, r.createdAt, r.appliedAt, r.err, r.experimentID}
}
