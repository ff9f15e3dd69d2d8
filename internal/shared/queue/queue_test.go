package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestQueue_Init_MinSize verifies that Init enforces minimum size.
func TestQueue_Init_MinSize(t *testing.T) {
	var q Queue[string]
	q.Init(1)

	require.GreaterOrEqual(t, len(q.buf), 2)
	require.Zero(t, q.Len())
}

// TestQueue_FIFO verifies push/pop ordering and emptiness.
func TestQueue_FIFO(t *testing.T) {
	var q Queue[string]
	q.Init(10)

	require.True(t, q.TryPush("c1"))
	require.True(t, q.TryPush("c2"))
	require.Equal(t, 2, q.Len())

	v, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, "c1", v)

	v, ok = q.TryPop()
	require.True(t, ok)
	require.Equal(t, "c2", v)

	_, ok = q.TryPop()
	require.False(t, ok)
}

// TestQueue_Full verifies that TryPush returns false when queue is full.
func TestQueue_Full(t *testing.T) {
	var q Queue[int]
	q.Init(3) // holds two elements

	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	require.False(t, q.TryPush(3))
}

// TestQueue_WrapAround verifies circular buffer behavior.
func TestQueue_WrapAround(t *testing.T) {
	var q Queue[int]
	q.Init(4)

	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	v, _ := q.TryPop()
	require.Equal(t, 1, v)

	require.True(t, q.TryPush(3))
	require.True(t, q.TryPush(4))
	require.Equal(t, 3, q.Len())

	for _, want := range []int{2, 3, 4} {
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
}
