// Package predictor forecasts near-future demand per content item from a
// window of request events.
//
// Requests are counted per fixed interval starting at the first interval that
// saw a request. The counts are smoothed exponentially; when the trailing
// intervals move strictly in one direction, double smoothing (level plus
// slope) is used instead and extrapolated over the horizon.
package predictor

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/model"
	"golang.org/x/sync/errgroup"
)

type Predictor struct {
	cfg    config.PredictorCfg
	logger *slog.Logger
}

func New(cfg config.PredictorCfg, logger *slog.Logger) *Predictor {
	return &Predictor{cfg: cfg, logger: logger}
}

// Horizon is the projection horizon of every forecast.
func (p *Predictor) Horizon() time.Duration { return p.cfg.Horizon }

// Forecast estimates demand of one content item over the horizon following
// window.To. Events of other content ids and events outside the window are
// ignored. item may be nil when no metadata is known.
func (p *Predictor) Forecast(id model.ContentID, events []model.RequestEvent, window model.Window, item *model.ContentItem) model.Forecast {
	var (
		from   = model.Normalize(window.From)
		to     = model.Normalize(window.To)
		stamps = make([]time.Time, 0, len(events))
	)
	for _, ev := range events {
		at := model.Normalize(ev.At)
		if ev.ContentID != id || at.Before(from) || !at.Before(to) {
			continue
		}
		stamps = append(stamps, at)
	}
	if len(stamps) == 0 {
		return model.ZeroForecast(id, p.cfg.Horizon)
	}

	counts, last := p.bucketize(stamps, from, to)

	var (
		predicted float64
		method    model.ForecastMethod
	)
	if p.trending(counts) {
		predicted, method = p.holt(counts), model.MethodTrend
	} else {
		predicted, method = p.smooth(counts), model.MethodSmoothing
	}

	confidence := p.confidence(len(stamps), to.Sub(last))

	if item != nil {
		if w, ok := p.cfg.TypeWeights[item.Type]; ok {
			predicted *= w
		}
		if p.cfg.LargeItemSize > 0 && item.Size >= p.cfg.LargeItemSize {
			confidence = math.Max(math.Min(confidence, 0.1), confidence-p.cfg.LargeItemPenalty)
		}
	}

	return model.Forecast{
		ContentID:  id,
		Predicted:  int64(math.Round(math.Max(0, predicted))),
		Confidence: clamp01(confidence),
		Horizon:    p.cfg.Horizon,
		Samples:    len(stamps),
		Method:     method,
	}
}

// ForecastAll forecasts every content id that appears in events or catalog.
// Catalog items without requests get a zero forecast. The result is ordered
// by content id.
func (p *Predictor) ForecastAll(ctx context.Context, events []model.RequestEvent, window model.Window, catalog []model.ContentItem) ([]model.Forecast, error) {
	byID := make(map[model.ContentID][]model.RequestEvent)
	for _, ev := range events {
		byID[ev.ContentID] = append(byID[ev.ContentID], ev)
	}
	meta := make(map[model.ContentID]*model.ContentItem, len(catalog))
	for i := range catalog {
		meta[catalog[i].ID] = &catalog[i]
		if _, ok := byID[catalog[i].ID]; !ok {
			byID[catalog[i].ID] = nil
		}
	}

	ids := make([]model.ContentID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]model.Forecast, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.Forecast(id, byID[id], window, meta[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("forecasts computed", "content", len(out), "events", len(events))
	return out, nil
}

// bucketize counts stamps per interval from the first non-empty interval up
// to the interval containing to. It also returns the latest stamp.
func (p *Predictor) bucketize(stamps []time.Time, from, to time.Time) ([]float64, time.Time) {
	interval := p.cfg.Interval
	total := int(to.Sub(from) / interval)
	if to.Sub(from)%interval != 0 || total == 0 {
		total++
	}
	counts := make([]float64, total)

	first, last := total, stamps[0]
	for _, at := range stamps {
		idx := int(at.Sub(from) / interval)
		if idx >= total {
			idx = total - 1
		}
		counts[idx]++
		if idx < first {
			first = idx
		}
		if at.After(last) {
			last = at
		}
	}
	return counts[first:], last
}

// trending reports whether the trailing TrendIntervals counts are strictly monotonic.
func (p *Predictor) trending(counts []float64) bool {
	k := p.cfg.TrendIntervals
	if len(counts) < k {
		return false
	}
	tail := counts[len(counts)-k:]
	up, down := true, true
	for i := 1; i < len(tail); i++ {
		if tail[i] <= tail[i-1] {
			up = false
		}
		if tail[i] >= tail[i-1] {
			down = false
		}
	}
	return up || down
}

// smooth projects the exponentially smoothed per-interval rate over the horizon.
func (p *Predictor) smooth(counts []float64) float64 {
	s := counts[0]
	for _, x := range counts[1:] {
		s = p.cfg.Alpha*x + (1-p.cfg.Alpha)*s
	}
	return s * p.steps()
}

// holt extrapolates level and slope, summing the non-negative per-interval
// projections over the horizon.
func (p *Predictor) holt(counts []float64) float64 {
	if len(counts) < 2 {
		return p.smooth(counts)
	}
	alpha, beta := p.cfg.Alpha, p.cfg.Beta
	level, slope := counts[0], counts[1]-counts[0]
	for _, x := range counts[1:] {
		prev := level
		level = alpha*x + (1-alpha)*(level+slope)
		slope = beta*(level-prev) + (1-beta)*slope
	}

	steps := p.steps()
	whole := int(steps)
	var sum float64
	for i := 1; i <= whole; i++ {
		sum += math.Max(0, level+float64(i)*slope)
	}
	if frac := steps - float64(whole); frac > 0 {
		sum += frac * math.Max(0, level+float64(whole+1)*slope)
	}
	return sum
}

func (p *Predictor) steps() float64 {
	return float64(p.cfg.Horizon) / float64(p.cfg.Interval)
}

// confidence grows with the number of samples and decays with the age of the
// most recent one.
func (p *Predictor) confidence(samples int, age time.Duration) float64 {
	volume := math.Min(1, float64(samples)/float64(p.cfg.FullConfidenceSamples))
	if age < 0 {
		age = 0
	}
	recency := math.Exp2(-float64(age) / float64(p.cfg.RecencyHalfLife))
	return volume * recency
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
