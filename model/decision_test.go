package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// TestDecision_Constructors verifies kind-specific validation of decisions.
func TestDecision_Constructors(t *testing.T) {
	item := ContentItem{ID: "C1", Size: 40}

	p, err := NewPrefetch("E1", item, time.Hour, 60, 30, at)
	require.NoError(t, err)
	require.Equal(t, KindPrefetch, p.Kind())
	require.Equal(t, int64(40), p.Size())
	ttl, ok := p.TTL()
	require.True(t, ok)
	require.Equal(t, time.Hour, ttl)
	require.Equal(t, "predicted_demand", p.Reason())
	require.Equal(t, Target{Edge: "E1", Content: "C1"}, p.Key())

	_, err = NewPrefetch("E1", item, 0, 60, 30, at)
	require.ErrorIs(t, err, ErrInvalidDecision)
	_, err = NewPrefetch("", item, time.Hour, 60, 30, at)
	require.ErrorIs(t, err, ErrInvalidDecision)
	_, err = NewPrefetch("E1", ContentItem{ID: "C1", Size: -1}, time.Hour, 60, 30, at)
	require.ErrorIs(t, err, ErrInvalidDecision)

	e, err := NewEvict("E1", "C2", 5, 2, "", at)
	require.NoError(t, err)
	_, ok = e.TTL()
	require.False(t, ok)
	require.Equal(t, "low_demand", e.Reason())
	require.Zero(t, e.Size())

	_, err = NewEvict("E1", "", 5, 2, "", at)
	require.ErrorIs(t, err, ErrInvalidDecision)

	u, err := NewTTLUpdate("E1", "C3", 30*time.Minute, 80, 40, at)
	require.NoError(t, err)
	require.Equal(t, KindTTLUpdate, u.Kind())
	require.Equal(t, "popularity_retune", u.Reason())

	_, err = NewTTLUpdate("E1", "C3", -time.Second, 80, 40, at)
	require.ErrorIs(t, err, ErrInvalidDecision)
}

// TestDecision_MarkApplied verifies application stamps a copy only.
func TestDecision_MarkApplied(t *testing.T) {
	d, err := NewEvict("E1", "C1", 1, 0, "idle", at)
	require.NoError(t, err)
	require.False(t, d.Applied())

	local := at.Add(time.Minute).In(time.FixedZone("X", 3600))
	applied := d.MarkApplied(local)
	require.True(t, applied.Applied())
	require.False(t, d.Applied())
	require.Equal(t, time.UTC, applied.AppliedAt().Location())
	require.True(t, applied.AppliedAt().Equal(local))
	require.Equal(t, "evict C1@E1 prio=1", applied.String())
}

// TestParseDecisionKind verifies kinds round-trip through their names.
func TestParseDecisionKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseDecisionKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, got)
	}
	_, err := ParseDecisionKind("purge")
	require.ErrorIs(t, err, ErrInvalidDecision)
}

// TestReport verifies per-kind accounting of a cycle.
func TestReport(t *testing.T) {
	var r Report
	r.Add(KindPrefetch, nil)
	r.Add(KindPrefetch, errors.New("capacity"))
	r.Add(KindEvict, nil)
	r.Add(KindTTLUpdate, nil)
	r.Add(DecisionKind(0), nil)

	require.Equal(t, KindCounts{Applied: 1, Failed: 1}, r.For(KindPrefetch))
	require.Equal(t, KindCounts{Applied: 1}, r.For(KindEvict))
	require.Equal(t, KindCounts{}, r.For(DecisionKind(9)))
	require.Equal(t, 3, r.Applied())
	require.Equal(t, 1, r.Failed())
}
