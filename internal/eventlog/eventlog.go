// Package eventlog keeps a bounded, append-only window of request events in
// memory. When full, the oldest events are overwritten.
package eventlog

import (
	"context"
	"sync"

	"github.com/Borislavv/go-ash-edge/model"
)

const defaultCapacity = 1 << 16

type Log struct {
	mu    sync.RWMutex
	buf   []model.RequestEvent
	next  int
	full  bool
	total int64
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{buf: make([]model.RequestEvent, capacity)}
}

// Append stores ev with a normalized timestamp.
func (l *Log) Append(_ context.Context, ev model.RequestEvent) error {
	ev.At = model.Normalize(ev.At)

	l.mu.Lock()
	l.buf[l.next] = ev
	l.next++
	if l.next == len(l.buf) {
		l.next, l.full = 0, true
	}
	l.total++
	l.mu.Unlock()
	return nil
}

// RecentEvents returns the retained events inside w, oldest first.
func (l *Log) RecentEvents(ctx context.Context, w model.Window) ([]model.RequestEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.RequestEvent, 0, l.lenLocked())
	visit := func(evs []model.RequestEvent) {
		for _, ev := range evs {
			if w.Contains(ev.At) {
				out = append(out, ev)
			}
		}
	}
	if l.full {
		visit(l.buf[l.next:])
	}
	visit(l.buf[:l.next])
	return out, nil
}

// Len is the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lenLocked()
}

// Total is the number of events ever appended.
func (l *Log) Total() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

func (l *Log) lenLocked() int {
	if l.full {
		return len(l.buf)
	}
	return l.next
}
