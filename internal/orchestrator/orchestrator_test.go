package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/catalog"
	"github.com/Borislavv/go-ash-edge/internal/eventlog"
	"github.com/Borislavv/go-ash-edge/internal/experiment"
	"github.com/Borislavv/go-ash-edge/internal/origin"
	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/internal/store"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/stretchr/testify/require"
)

var (
	t0         = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	predictive = model.Mode{Predictive: true, ActivatedAt: t0}
	errDown    = errors.New("log collaborator down")
)

type countingEvents struct {
	Events
	calls atomic.Int64
	err   error
}

func (c *countingEvents) RecentEvents(ctx context.Context, w model.Window) ([]model.RequestEvent, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Events.RecentEvents(ctx, w)
}

type memRecorder struct {
	mu       sync.Mutex
	outcomes []model.Outcome
}

func (r *memRecorder) Record(_ context.Context, o model.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

type fixture struct {
	clk      *clock.Manual
	store    *store.Store
	log      *eventlog.Log
	events   *countingEvents
	catalog  *catalog.Memory
	recorder *memRecorder
	orch     *Orchestrator
}

func newFixture(t *testing.T, items ...model.ContentItem) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Predictor.Horizon = time.Minute
	cfg.Orchestrator.Window = 10 * time.Minute

	clk := clock.NewManual(t0)
	logger := slog.New(slog.DiscardHandler)
	s, err := store.New(clk, logger, 4, model.EdgeNode{ID: "E1", Region: "eu", Capacity: 100})
	require.NoError(t, err)

	f := &fixture{
		clk:      clk,
		store:    s,
		log:      eventlog.New(0),
		catalog:  catalog.New(items...),
		recorder: &memRecorder{},
	}
	f.events = &countingEvents{Events: f.log}
	f.orch = New(cfg, clk, logger, Deps{
		Store:     s,
		Origin:    origin.NewStatic(0),
		Events:    f.events,
		Catalog:   f.catalog,
		Recorders: []Recorder{f.recorder},
	})
	return f
}

// steady appends perMinute requests of id in each of the last ten minutes.
func (f *fixture) steady(t *testing.T, id model.ContentID, perMinute int) {
	t.Helper()
	from := f.clk.Now().Add(-10 * time.Minute)
	for m := 0; m < 10; m++ {
		at := from.Add(time.Duration(m)*time.Minute + 30*time.Second)
		for i := 0; i < perMinute; i++ {
			require.NoError(t, f.log.Append(context.Background(), model.NewRequestEvent(id, "E1", at, false, time.Millisecond)))
		}
	}
}

func byKind(results []model.DecisionResult, kind model.DecisionKind) []model.DecisionResult {
	var out []model.DecisionResult
	for _, r := range results {
		if r.Decision.Kind() == kind {
			out = append(out, r)
		}
	}
	return out
}

// TestRunCycle_PrefetchInPriorityOrderUntilFull verifies C1 and C2 are applied, C3 fails on capacity and usage ends at 80.
func TestRunCycle_PrefetchInPriorityOrderUntilFull(t *testing.T) {
	f := newFixture(t,
		model.ContentItem{ID: "C1", Size: 40},
		model.ContentItem{ID: "C2", Size: 40},
		model.ContentItem{ID: "C3", Size: 40},
	)
	f.steady(t, "C1", 30)
	f.steady(t, "C2", 20)
	f.steady(t, "C3", 10)

	out := f.orch.RunCycle(context.Background(), predictive)
	require.Equal(t, model.StatusRan, out.Status)
	require.NoError(t, out.Err)
	require.Len(t, out.Forecasts, 3)

	prefetches := byKind(out.Results, model.KindPrefetch)
	require.Len(t, prefetches, 3)
	require.Equal(t, model.ContentID("C1"), prefetches[0].Decision.Content())
	require.Equal(t, model.ContentID("C2"), prefetches[1].Decision.Content())
	require.Equal(t, model.ContentID("C3"), prefetches[2].Decision.Content())
	require.Greater(t, prefetches[0].Decision.Priority(), prefetches[1].Decision.Priority())
	require.Greater(t, prefetches[1].Decision.Priority(), prefetches[2].Decision.Priority())

	require.NoError(t, prefetches[0].Err)
	require.True(t, prefetches[0].Decision.Applied())
	require.NoError(t, prefetches[1].Err)
	require.ErrorIs(t, prefetches[2].Err, store.ErrCapacityExceeded)
	require.False(t, prefetches[2].Decision.Applied())

	require.Equal(t, model.KindCounts{Applied: 2, Failed: 1}, out.Report.Prefetch)

	st, err := f.store.Stats("E1")
	require.NoError(t, err)
	require.Equal(t, int64(80), st.BytesUsed)
	require.False(t, f.store.Contains("E1", "C3"))

	ttl, ok := f.orch.FillTTL("C1")
	require.True(t, ok)
	require.Positive(t, ttl)

	require.Len(t, f.recorder.outcomes, 1)
	last, cycles := f.orch.LastOutcome()
	require.Equal(t, int64(1), cycles)
	require.Equal(t, model.StatusRan, last.Status)
}

// TestApply_OversizedPrefetchLeavesStoreUntouched verifies a failed prefetch writes nothing.
func TestApply_OversizedPrefetchLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	big := model.ContentItem{ID: "big", Size: 101}
	d, err := model.NewPrefetch("E1", big, time.Hour, 10, 50, t0)
	require.NoError(t, err)

	results, report := f.orch.apply(context.Background(), []model.Decision{d}, []model.ContentItem{big})
	require.ErrorIs(t, results[0].Err, store.ErrCapacityExceeded)
	require.Equal(t, 1, report.Prefetch.Failed)

	st, err := f.store.Stats("E1")
	require.NoError(t, err)
	require.Zero(t, st.BytesUsed)
	require.Zero(t, st.Count)
}

// TestApply_FailuresAreIsolated verifies not-found decisions do not stop later ones.
func TestApply_FailuresAreIsolated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Put("E1", model.ContentItem{ID: "kept", Size: 10}, nil, time.Hour))

	gone, err := model.NewEvict("E1", "missing", 100, 0, "", t0)
	require.NoError(t, err)
	retune, err := model.NewTTLUpdate("E1", "kept", 2*time.Hour, 10, 60, t0)
	require.NoError(t, err)

	results, report := f.orch.apply(context.Background(), []model.Decision{gone, retune}, nil)
	require.ErrorIs(t, results[0].Err, store.ErrNotFound)
	require.NoError(t, results[1].Err)
	require.Equal(t, model.KindCounts{Failed: 1}, report.Evict)
	require.Equal(t, model.KindCounts{Applied: 1}, report.TTLUpdate)
}

// TestApply_CancelledMarksRemainingFailed verifies nothing is applied after cancellation.
func TestApply_CancelledMarksRemainingFailed(t *testing.T) {
	f := newFixture(t)
	d, err := model.NewPrefetch("E1", model.ContentItem{ID: "a", Size: 1}, time.Hour, 10, 5, t0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, report := f.orch.apply(ctx, []model.Decision{d, d}, nil)
	require.ErrorIs(t, results[0].Err, context.Canceled)
	require.Equal(t, 2, report.Prefetch.Failed)
	require.False(t, f.store.Contains("E1", "a"))
}

// TestRunCycle_EvictsIdleAndRetunesBusy verifies resident entries without demand are evicted and busy ones retuned.
func TestRunCycle_EvictsIdleAndRetunesBusy(t *testing.T) {
	f := newFixture(t, model.ContentItem{ID: "busy", Size: 10}, model.ContentItem{ID: "idle", Size: 10})
	require.NoError(t, f.store.Put("E1", model.ContentItem{ID: "busy", Size: 10}, nil, 90*time.Second))
	require.NoError(t, f.store.Put("E1", model.ContentItem{ID: "idle", Size: 10}, nil, time.Hour))
	f.steady(t, "busy", 20)

	out := f.orch.RunCycle(context.Background(), predictive)
	require.Equal(t, model.StatusRan, out.Status)
	require.Equal(t, model.KindCounts{Applied: 1}, out.Report.Evict)
	require.Equal(t, model.KindCounts{Applied: 1}, out.Report.TTLUpdate)
	require.False(t, f.store.Contains("E1", "idle"))

	got, ok := f.store.Get("E1", "busy")
	require.True(t, ok)
	require.NotEqual(t, 90*time.Second, got.Entry.TTL)
}

// TestRunCycle_BaselineModeSkips verifies the predictor inputs are never read in baseline mode.
func TestRunCycle_BaselineModeSkips(t *testing.T) {
	f := newFixture(t, model.ContentItem{ID: "C1", Size: 10})
	f.steady(t, "C1", 30)

	out := f.orch.RunCycle(context.Background(), model.Mode{Predictive: false, ActivatedAt: t0})
	require.Equal(t, model.StatusSkipped, out.Status)
	require.NoError(t, out.Err)
	require.Empty(t, out.Forecasts)
	require.Empty(t, out.Results)
	require.Zero(t, f.events.calls.Load())
	require.False(t, f.store.Contains("E1", "C1"))
}

// TestTick_ModeToggle verifies flipping the switch off makes the next cycle skip.
func TestTick_ModeToggle(t *testing.T) {
	f := newFixture(t, model.ContentItem{ID: "C1", Size: 10})
	f.steady(t, "C1", 30)
	sw := experiment.NewSwitch(f.clk, true)

	require.Equal(t, model.StatusRan, f.orch.Tick(context.Background(), sw).Status)

	_, err := sw.Set(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, model.StatusSkipped, f.orch.Tick(context.Background(), sw).Status)
	require.Equal(t, int64(1), f.events.calls.Load())
}

type brokenSource struct{}

func (brokenSource) Mode(context.Context) (model.Mode, error) { return model.Mode{}, errDown }

// TestTick_UnreadableModeAborts verifies a mode read failure aborts as input-unavailable.
func TestTick_UnreadableModeAborts(t *testing.T) {
	f := newFixture(t)
	out := f.orch.Tick(context.Background(), brokenSource{})
	require.Equal(t, model.StatusAborted, out.Status)
	require.ErrorIs(t, out.Err, ErrInputUnavailable)
	require.ErrorIs(t, out.Err, errDown)
}

// TestRunCycle_InputUnavailableAborts verifies no decisions are made when the request log fails.
func TestRunCycle_InputUnavailableAborts(t *testing.T) {
	f := newFixture(t, model.ContentItem{ID: "C1", Size: 10})
	f.events.err = errDown

	out := f.orch.RunCycle(context.Background(), predictive)
	require.Equal(t, model.StatusAborted, out.Status)
	require.ErrorIs(t, out.Err, ErrInputUnavailable)
	require.ErrorIs(t, out.Err, errDown)
	require.Empty(t, out.Forecasts)
	require.Empty(t, out.Results)

	_, ok := f.orch.Forecast("C1")
	require.False(t, ok)
	require.Len(t, f.recorder.outcomes, 1)
}

// TestRunCycle_OverlapAborts verifies a cycle never runs while another holds the guard.
func TestRunCycle_OverlapAborts(t *testing.T) {
	f := newFixture(t)
	f.orch.running.Lock()
	defer f.orch.running.Unlock()

	out := f.orch.RunCycle(context.Background(), predictive)
	require.Equal(t, model.StatusAborted, out.Status)
	require.ErrorIs(t, out.Err, ErrCycleInProgress)
	require.Zero(t, f.events.calls.Load())
}

// TestRun_DisabledInterval verifies the scheduler returns at once without an interval.
func TestRun_DisabledInterval(t *testing.T) {
	f := newFixture(t)
	f.orch.cfg.Interval = 0
	require.NoError(t, f.orch.Run(context.Background(), experiment.NewSwitch(f.clk, true)))
}
