package benchmark

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuite(t *testing.T) {
	r := NewRunner("")
	results := r.RunSuite(context.Background())

	require.Len(t, results, 4)
	names := make([]string, len(results))
	for i, res := range results {
		names[i] = res.Name
		assert.NotEmpty(t, res.ID)
		assert.False(t, res.Timestamp.IsZero())
		assert.Contains(t, res.Metrics, "duration_ms")
		assert.GreaterOrEqual(t, res.Score, float64(0))
		assert.LessOrEqual(t, res.Score, float64(100))
	}
	assert.Equal(t, []string{"cpu-arithmetic", "memory-allocation", "sort-ints", "json-roundtrip"}, names)
}

func TestRunInitialSeedsBaseline(t *testing.T) {
	r := NewRunner("")
	assert.Empty(t, r.Baseline())

	r.RunInitial(context.Background())
	baseline := r.Baseline()
	assert.Len(t, baseline, 4)

	// A second suite run compares against the baseline but never
	// overwrites it.
	before := r.Baseline()
	results := r.RunSuite(context.Background())
	assert.Equal(t, before, r.Baseline())

	for _, res := range results {
		require.Contains(t, res.Baseline, "score")
		require.Contains(t, res.Comparison, "score")
	}
}

func TestBaselinePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")

	r := NewRunner(path)
	r.RunInitial(context.Background())
	seeded := r.Baseline()
	require.NotEmpty(t, seeded)

	fresh := NewRunner(path)
	require.NoError(t, fresh.ReloadBaseline())
	assert.Equal(t, seeded, fresh.Baseline())
}

func TestReloadBaselineMissingFile(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, r.ReloadBaseline())
}

func TestScorePenalties(t *testing.T) {
	w := workload{name: "x", refMillis: 200, refHeapKB: 1000}

	tests := []struct {
		name     string
		metrics  map[string]float64
		expected float64
	}{
		{"instant run", map[string]float64{"duration_ms": 0}, 100},
		{"at time reference", map[string]float64{"duration_ms": 200}, 50},
		{"time and heap", map[string]float64{"duration_ms": 200, "heap_delta_kb": 1000}, 25},
		{"clamped at zero", map[string]float64{"duration_ms": 1000, "heap_delta_kb": 5000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, score(w, tt.metrics), 0.001)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		baseline float64
		expected Comparison
	}{
		{"clearly better", 90, 70, ComparisonBetter},
		{"clearly worse", 50, 70, ComparisonWorse},
		{"within band", 71, 70, ComparisonSame},
		{"equal", 70, 70, ComparisonSame},
		{"zero baseline", 50, 0, ComparisonSame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, compare(tt.current, tt.baseline))
		})
	}
}

func TestPanickingWorkloadIsExcluded(t *testing.T) {
	r := NewRunner("")
	r.suite = append(r.suite, workload{
		name:      "exploding",
		refMillis: 100,
		run:       func() map[string]float64 { panic("boom") },
	})

	results := r.RunSuite(context.Background())
	require.Len(t, results, 4)
	for _, res := range results {
		assert.NotEqual(t, "exploding", res.Name)
	}
}

func TestRunSuiteCancelledContext(t *testing.T) {
	r := NewRunner("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, r.RunSuite(ctx))
}
