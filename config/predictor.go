package config

import (
	"errors"
	"time"
)

type PredictorCfg struct {
	// Alpha is the level smoothing factor, (0, 1].
	Alpha float64 `yaml:"alpha"`

	// Beta is the trend smoothing factor of the double-smoothing variant, (0, 1].
	Beta float64 `yaml:"beta"`

	// Interval is the width of one request-count bucket.
	Interval time.Duration `yaml:"interval"`

	// Horizon is how far ahead the predicted request count is projected.
	Horizon time.Duration `yaml:"horizon"`

	// Window is how much request history one cycle reads.
	Window time.Duration `yaml:"window"`

	// TrendIntervals is how many trailing buckets must be strictly monotonic
	// for the trend-aware variant to be used.
	TrendIntervals int `yaml:"trend_intervals"`

	// FullConfidenceSamples is the number of requests after which the sample
	// factor of confidence saturates at 1.
	FullConfidenceSamples int `yaml:"min_samples_for_full_confidence"`

	// RecencyHalfLife halves confidence for every half-life elapsed since the
	// most recent request.
	RecencyHalfLife time.Duration `yaml:"recency_half_life"`

	// TypeWeights multiplies the prediction by content type.
	// Example: {video: 1.2, image: 0.8}.
	TypeWeights map[string]float64 `yaml:"content_type_weights"`

	// LargeItemSize lowers confidence by LargeItemPenalty for items of at least this size.
	// Zero disables the penalty.
	LargeItemSize    int64   `yaml:"large_item_size"`
	LargeItemPenalty float64 `yaml:"large_item_penalty"`

	// Parallelism bounds concurrent per-content predictions of one cycle.
	Parallelism int `yaml:"parallelism"`
}

func (cfg *PredictorCfg) adjust() {
	if cfg.Alpha <= 0 {
		cfg.Alpha = 0.3
	}
	if cfg.Beta <= 0 {
		cfg.Beta = 0.2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.TrendIntervals <= 0 {
		cfg.TrendIntervals = 3
	}
	if cfg.FullConfidenceSamples <= 0 {
		cfg.FullConfidenceSamples = 10
	}
	if cfg.RecencyHalfLife <= 0 {
		cfg.RecencyHalfLife = 15 * time.Minute
	}
	if cfg.TypeWeights == nil {
		cfg.TypeWeights = map[string]float64{"video": 1.2, "image": 0.8}
	}
	if cfg.LargeItemPenalty <= 0 {
		cfg.LargeItemPenalty = 0.1
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
}

func (cfg *PredictorCfg) validate() []error {
	var errs []error
	if cfg.Alpha > 1 {
		errs = append(errs, errors.New("predictor: alpha must be in (0, 1]"))
	}
	if cfg.Beta > 1 {
		errs = append(errs, errors.New("predictor: beta must be in (0, 1]"))
	}
	if cfg.TrendIntervals < 2 {
		errs = append(errs, errors.New("predictor: trend_intervals must be at least 2"))
	}
	return errs
}
