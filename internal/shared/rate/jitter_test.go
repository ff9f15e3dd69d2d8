package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestJitter_Chan_ReceivesSignals verifies that Chan() receives rate-limited signals.
func TestJitter_Chan_ReceivesSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jitter := NewJitter(ctx, 10)
	require.Equal(t, 10, jitter.Limit())

	select {
	case <-jitter.Chan():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("jitter should emit signals")
	}
}

// TestJitter_Take_ReturnsPermit verifies that Take returns true while running.
func TestJitter_Take_ReturnsPermit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jitter := NewJitter(ctx, 100)
	require.True(t, jitter.Take())
}

// TestJitter_StopsOnContextCancel verifies that the permit channel is closed after cancel.
func TestJitter_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	jitter := NewJitter(ctx, 100)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-jitter.Chan():
			if !ok {
				require.False(t, jitter.Take())
				return
			}
		case <-deadline:
			t.Fatal("channel should be closed after context cancel")
		}
	}
}

// TestNewJitter_NonPositiveLimit verifies that a non-positive limit is raised to one permit per second.
func TestNewJitter_NonPositiveLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jitter := NewJitter(ctx, 0)
	require.Equal(t, 1, jitter.Limit())
	require.Equal(t, 1, cap(jitter.ch))
}
