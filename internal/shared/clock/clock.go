package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-ash-edge/model"
)

const cacheTimeEach = 10 * time.Millisecond

// Clock is the single time source of the tier. Every implementation returns
// canonical timestamps (UTC, no monotonic reading).
type Clock interface {
	Now() time.Time
	UnixNano() int64
}

// Real reads the wall clock on every call.
type Real struct{}

func (Real) Now() time.Time  { return model.Normalize(time.Now()) }
func (Real) UnixNano() int64 { return time.Now().UnixNano() }

// Cached is a wall clock refreshed every 10ms by a background ticker, which
// keeps hot request paths away from time.Now. Once ctx is done it falls back
// to reading the wall clock directly.
type Cached struct {
	nowUnix atomic.Int64
	closed  atomic.Bool
}

// NewCached starts the refresh ticker bound to ctx.
func NewCached(ctx context.Context) *Cached {
	c := &Cached{}
	c.nowUnix.Store(time.Now().UnixNano())

	ticker := time.NewTicker(cacheTimeEach)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case tt := <-ticker.C:
				c.nowUnix.Store(tt.UnixNano())
			case <-ctx.Done():
				c.closed.Store(true)
				return
			}
		}
	}()
	return c
}

func (c *Cached) Now() time.Time {
	return model.FromUnixNano(c.UnixNano())
}

func (c *Cached) UnixNano() int64 {
	if c.closed.Load() {
		return time.Now().UnixNano()
	}
	return c.nowUnix.Load()
}

// Manual only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual starts at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: model.Normalize(t)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) UnixNano() int64 {
	return m.Now().UnixNano()
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = model.Normalize(t)
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
