package lifetimer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNoOpLifetimer verifies the disabled lifetimer reports zero metrics.
func TestNoOpLifetimer(t *testing.T) {
	var lt NoOpLifetimer
	reclaimed, freed, scans, hits, misses := lt.Metrics()
	require.Zero(t, reclaimed+freed+scans+hits+misses)
	require.NoError(t, lt.Close())
}
