package experiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// TestSwitch_SetKeepsActivationOnNoop verifies activation time changes only on an actual flip.
func TestSwitch_SetKeepsActivationOnNoop(t *testing.T) {
	clk := clock.NewManual(t0)
	s := NewSwitch(clk, true)

	clk.Advance(time.Minute)
	m, err := s.Set(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, t0, m.ActivatedAt)

	clk.Advance(time.Minute)
	m, err = s.Set(context.Background(), false)
	require.NoError(t, err)
	require.False(t, m.Predictive)
	require.Equal(t, t0.Add(2*time.Minute), m.ActivatedAt)

	got, err := s.Mode(context.Background())
	require.NoError(t, err)
	require.Equal(t, m, got)
}

type fakeHash struct {
	fields map[string]string
	err    error
}

func (f *fakeHash) HGetAll(_ context.Context, _ string) *redis.MapStringStringCmd {
	out := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, f.err)
}

func (f *fakeHash) HSet(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.fields == nil {
		f.fields = map[string]string{}
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.fields[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

// TestRedisSwitch_RoundTrip verifies the mode survives through the shared hash.
func TestRedisSwitch_RoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(t0)
	h := &fakeHash{}
	s := NewRedisSwitch(h, "", clk, true, 0)

	m, err := s.Mode(ctx)
	require.NoError(t, err)
	require.True(t, m.Predictive, "empty hash falls back")

	m, err = s.Set(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "false", h.fields[fieldPredictive])

	other := NewRedisSwitch(h, "", clk, true, 0)
	got, err := other.Mode(ctx)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

// TestRedisSwitch_Errors verifies transport and decode failures are reported.
func TestRedisSwitch_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	s := NewRedisSwitch(&fakeHash{err: boom}, "k", clock.NewManual(t0), true, 0)
	_, err := s.Mode(ctx)
	require.ErrorIs(t, err, boom)

	s = NewRedisSwitch(&fakeHash{fields: map[string]string{fieldPredictive: "maybe"}}, "k", clock.NewManual(t0), true, 0)
	_, err = s.Mode(ctx)
	require.Error(t, err)
}

// stalledHash never answers before the caller's deadline.
type stalledHash struct{}

func (stalledHash) HGetAll(ctx context.Context, _ string) *redis.MapStringStringCmd {
	<-ctx.Done()
	return redis.NewMapStringStringResult(nil, ctx.Err())
}

func (stalledHash) HSet(ctx context.Context, _ string, _ ...interface{}) *redis.IntCmd {
	<-ctx.Done()
	return redis.NewIntResult(0, ctx.Err())
}

// TestRedisSwitch_Timeout verifies a stalled redis fails the read within the configured timeout.
func TestRedisSwitch_Timeout(t *testing.T) {
	s := NewRedisSwitch(stalledHash{}, "k", clock.NewManual(t0), true, 20*time.Millisecond)

	started := time.Now()
	_, err := s.Mode(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), time.Second)

	_, err = s.Set(context.Background(), false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func event(hit bool, latency time.Duration) model.RequestEvent {
	return model.NewRequestEvent("c", "E1", t0, hit, latency)
}

// TestTracker_ResultsAndCompare verifies per-experiment attribution, percentiles and comparison.
func TestTracker_ResultsAndCompare(t *testing.T) {
	clk := clock.NewManual(t0)
	tr := NewTracker(clk, 0)

	tr.Observe(event(true, time.Millisecond)) // before any experiment

	base := tr.Start(model.Mode{Predictive: false})
	for i := 0; i < 5; i++ {
		tr.Observe(event(true, 10*time.Millisecond))
	}
	for i := 0; i < 5; i++ {
		tr.Observe(event(false, 200*time.Millisecond))
	}

	clk.Advance(time.Hour)
	pred := tr.Start(model.Mode{Predictive: true, ActivatedAt: clk.Now()})
	require.Equal(t, base.ID+1, pred.ID)
	for i := 0; i < 8; i++ {
		tr.Observe(event(true, 10*time.Millisecond))
	}
	for i := 0; i < 2; i++ {
		tr.Observe(event(false, 200*time.Millisecond))
	}

	results := tr.Results()
	require.Len(t, results, 2)

	b := results[0]
	require.Equal(t, t0.Add(time.Hour), b.Experiment.EndedAt)
	require.Equal(t, int64(10), b.Requests)
	require.InDelta(t, 0.5, b.HitRatio, 1e-9)
	require.Equal(t, 105*time.Millisecond, b.AvgLatency)
	require.Equal(t, 10*time.Millisecond, b.AvgHitLatency)
	require.Equal(t, 200*time.Millisecond, b.AvgMissLatency)
	require.Equal(t, 10*time.Millisecond, b.P50)
	require.Equal(t, 200*time.Millisecond, b.P99)

	p, ok := tr.Result(pred.ID)
	require.True(t, ok)
	require.InDelta(t, 0.8, p.HitRatio, 1e-9)
	require.Equal(t, 48*time.Millisecond, p.AvgLatency)

	c := Compare(b, p)
	require.InDelta(t, 30, c.HitRatioGain, 1e-9)
	require.InDelta(t, (105.0-48.0)/105.0, c.LatencyReduction, 1e-9)
}

// TestTracker_SampleRing verifies latency samples are bounded.
func TestTracker_SampleRing(t *testing.T) {
	tr := NewTracker(clock.NewManual(t0), 4)
	tr.Start(model.Mode{})
	for i := 1; i <= 10; i++ {
		tr.Observe(event(false, time.Duration(i)*time.Millisecond))
	}
	r := tr.Results()[0]
	require.Equal(t, int64(10), r.Requests)
	require.Equal(t, 10*time.Millisecond, r.P99)
	require.Equal(t, 8*time.Millisecond, r.P50)
}

// TestTracker_Follow verifies a new experiment starts only when the mode changes.
func TestTracker_Follow(t *testing.T) {
	clk := clock.NewManual(t0)
	tr := NewTracker(clk, 0)
	on := model.Mode{Predictive: true, ActivatedAt: t0}

	tr.Follow(on)
	tr.Follow(on)
	first, ok := tr.Current()
	require.True(t, ok)
	require.Equal(t, int64(1), first.ID)

	tr.Follow(model.Mode{Predictive: false, ActivatedAt: t0.Add(time.Minute)})
	second, _ := tr.Current()
	require.Equal(t, int64(2), second.ID)
	require.False(t, second.Mode.Predictive)
}
