package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

// Jitter turns a leaky-bucket limiter into a channel of permits so that
// consumers can select on it together with ctx.Done().
type Jitter struct {
	ch    chan struct{}
	l     ratelimit.Limiter
	limit int
}

// NewJitter emits up to limit permits per second until ctx is done,
// then closes the permit channel.
func NewJitter(ctx context.Context, limit int) *Jitter {
	if limit < 1 {
		limit = 1
	}
	brst := limit / 10
	if brst < 1 {
		brst = 1
	}
	jitter := &Jitter{
		limit: limit,
		ch:    make(chan struct{}, brst),
		l:     ratelimit.New(limit),
	}
	go jitter.provider(ctx)
	return jitter
}

func (l *Jitter) provider(ctx context.Context) {
	defer close(l.ch)
	for {
		l.l.Take()
		select {
		case <-ctx.Done():
			return
		case l.ch <- struct{}{}:
		}
	}
}

// Take waits for a permit. It returns false once the jitter is stopped.
func (l *Jitter) Take() bool {
	_, ok := <-l.ch
	return ok
}

func (l *Jitter) Chan() <-chan struct{} {
	return l.ch
}

// Limit is the configured number of permits per second.
func (l *Jitter) Limit() int {
	return l.limit
}
