package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-edge/internal/admission"
	"github.com/Borislavv/go-ash-edge/internal/evictor"
	"github.com/Borislavv/go-ash-edge/internal/lifetimer"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/stretchr/testify/require"
)

type fixedStats []model.Stats

func (f fixedStats) AllStats() []model.Stats { return f }

// TestDeltaSnapshot verifies deltas and counter resets.
func TestDeltaSnapshot(t *testing.T) {
	prev := snapshot{hits: 10, misses: 5, sweeps: 7}
	cur := snapshot{hits: 15, misses: 5, sweeps: 3}

	d := deltaSnapshot(prev, cur)
	require.Equal(t, uint64(5), d.hits)
	require.Zero(t, d.misses)
	require.Equal(t, uint64(3), d.sweeps, "a reset counter reports its current value")
}

// TestSampler_SumsEdges verifies store counters are summed over edges.
func TestSampler_SumsEdges(t *testing.T) {
	s := sampler{
		store:     fixedStats{{Edge: "E1", Hits: 3, Misses: 1}, {Edge: "E2", Hits: 2, Misses: 4, Expired: 1}},
		gate:      admission.New(nil),
		evictor:   evictor.NoOpEvictor{},
		lifetimer: lifetimer.NoOpLifetimer{},
	}
	snap := s.snapshot()
	require.Equal(t, uint64(5), snap.hits)
	require.Equal(t, uint64(5), snap.misses)
	require.Equal(t, uint64(1), snap.expired)
}

// TestLogs_Emit verifies the per-interval lines are written.
func TestLogs_Emit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	store := fixedStats{{Edge: "E1", Count: 2, BytesUsed: 80, Capacity: 100}}

	l := New(context.Background(), logger, store, admission.New(nil), evictor.NoOpEvictor{}, lifetimer.NoOpLifetimer{}, 0)
	defer func() { require.NoError(t, l.Close()) }()
	require.Equal(t, time.Duration(0), l.Interval())

	l.emit(snapshot{hits: 3, misses: 1})
	out := buf.String()
	require.Contains(t, out, `"msg":"requests"`)
	require.Contains(t, out, `"hit_ratio":0.75`)
	require.Contains(t, out, `"usage":"80.0%"`)
	require.NotContains(t, out, "lifetime_manager")
}
