package entry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const t0 = int64(1_700_000_000_000_000_000)

// TestEntry_IsExpired verifies that an entry stops being readable exactly at expiry.
func TestEntry_IsExpired(t *testing.T) {
	e := New("e1", "c1", 10, []byte("x"), time.Minute, t0)

	require.False(t, e.IsExpired(t0))
	require.False(t, e.IsExpired(t0+int64(time.Minute)-1))
	require.True(t, e.IsExpired(t0+int64(time.Minute)))
	require.True(t, e.IsExpired(t0+int64(61*time.Second)))
}

// TestEntry_Touch_StrictlyAfterCreation verifies last access is strictly later than creation even on a frozen clock.
func TestEntry_Touch_StrictlyAfterCreation(t *testing.T) {
	e := New("e1", "c1", 10, nil, time.Minute, t0)

	e.Touch(t0)
	require.Equal(t, int64(1), e.AccessCount())
	require.Greater(t, e.LastAccess(), e.CreatedAt())

	e.Touch(t0 + 100)
	e.Touch(t0 + 50) // stale clock reading never moves access time back
	require.Equal(t, int64(3), e.AccessCount())
	require.Equal(t, t0+100, e.LastAccess())
}

// TestEntry_Refresh_KeepsAccessHistory verifies that an overwrite resets lifetime but not counters.
func TestEntry_Refresh_KeepsAccessHistory(t *testing.T) {
	e := New("e1", "c1", 10, []byte("old"), time.Minute, t0)
	e.Touch(t0 + 1)
	e.Touch(t0 + 2)
	require.True(t, e.MarkQueued())
	require.False(t, e.MarkQueued())

	later := t0 + int64(30*time.Second)
	e.Refresh(20, []byte("new"), 2*time.Minute, later)

	require.Equal(t, []byte("new"), e.Payload())
	require.Equal(t, int64(20), e.Size())
	require.Equal(t, later, e.CreatedAt())
	require.Equal(t, later+int64(2*time.Minute), e.ExpiresAt())
	require.Equal(t, int64(2), e.AccessCount())
	require.True(t, e.MarkQueued(), "refresh must clear the queued flag")
}

// TestEntry_SetTTL verifies expiry is recomputed from the retune time.
func TestEntry_SetTTL(t *testing.T) {
	e := New("e1", "c1", 10, nil, time.Minute, t0)
	at := t0 + int64(50*time.Second)
	e.SetTTL(time.Hour, at)

	require.Equal(t, time.Hour, e.TTL())
	require.Equal(t, at+int64(time.Hour), e.ExpiresAt())
	require.Equal(t, t0, e.CreatedAt())

	snap := e.Snapshot()
	require.Equal(t, time.Hour, snap.TTL)
	require.True(t, snap.ExpiresAt.Equal(snap.CreatedAt.Add(50*time.Second+time.Hour)))
}
