package origin

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/model"
)

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Counts holds request outcomes of the current breaker generation.
type Counts struct {
	Requests            uint32
	Failures            uint32
	ConsecutiveFailures uint32
}

// Breaker stops calling a failing origin. While open every fetch fails fast
// with ErrCircuitOpen; after OpenTimeout a limited number of probes is let
// through and the first outcome decides whether to close or reopen.
// Not-found answers and caller cancellations do not count as failures.
type Breaker struct {
	next   Origin
	cfg    config.BreakerCfg
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

func NewBreaker(next Origin, cfg config.BreakerCfg, clk clock.Clock, logger *slog.Logger) *Breaker {
	b := &Breaker{next: next, cfg: cfg, clock: clk, logger: logger}
	if cfg.Interval > 0 {
		b.expiry = clk.Now().Add(cfg.Interval)
	}
	return b
}

func (b *Breaker) Fetch(ctx context.Context, item model.ContentItem) ([]byte, error) {
	if err := b.before(); err != nil {
		return nil, err
	}
	payload, err := b.next.Fetch(ctx, item)
	b.after(err)
	return payload, err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(b.clock.Now())
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current(b.clock.Now()) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.counts.Requests >= b.cfg.HalfOpenRequests {
			return ErrCircuitOpen
		}
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	state := b.current(now)
	if isHealthy(err) {
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	switch state {
	case StateClosed:
		if b.readyToTrip() {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

func (b *Breaker) readyToTrip() bool {
	c := b.counts
	return c.Requests >= b.cfg.MinRequests && float64(c.Failures)/float64(c.Requests) >= b.cfg.FailureRatio
}

func (b *Breaker) current(now time.Time) State {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && !now.Before(b.expiry) {
			b.counts = Counts{}
			b.expiry = now.Add(b.cfg.Interval)
		}
	case StateOpen:
		if !now.Before(b.expiry) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts = Counts{}

	switch to {
	case StateClosed:
		b.expiry = time.Time{}
		if b.cfg.Interval > 0 {
			b.expiry = now.Add(b.cfg.Interval)
		}
	case StateOpen:
		b.expiry = now.Add(b.cfg.OpenTimeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}
	b.logger.Warn("origin breaker state changed", "from", from.String(), "to", to.String())
}

func isHealthy(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
}
