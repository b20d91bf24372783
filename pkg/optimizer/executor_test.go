package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfwatch/analyzer/pkg/analyzer"
)

func snapshotSequence(snapshots ...map[string]float64) SnapshotFunc {
	i := 0
	return func() (map[string]float64, error) {
		if i >= len(snapshots) {
			return snapshots[len(snapshots)-1], nil
		}
		s := snapshots[i]
		i++
		return s, nil
	}
}

func testRecommendation(steps ...string) analyzer.Recommendation {
	return analyzer.Recommendation{
		ID:             "system-optimization",
		Priority:       analyzer.PriorityHigh,
		Risk:           analyzer.RiskAssessment{Level: analyzer.RiskLow},
		Implementation: analyzer.ImplementationPlan{Steps: steps},
		EstimatedCost:  100,
	}
}

func TestExecuteSuccess(t *testing.T) {
	registry := NewRegistry()
	var ran []string
	registry.RegisterFunc("step-one", func(ctx context.Context) error {
		ran = append(ran, "step-one")
		return nil
	})
	registry.RegisterFunc("step-two", func(ctx context.Context) error {
		ran = append(ran, "step-two")
		return nil
	})

	snapshot := snapshotSequence(
		map[string]float64{"system.cpu": 90, "application.response_time": 1200},
		map[string]float64{"system.cpu": 70, "application.response_time": 900},
	)
	e := NewExecutor(registry, snapshot, time.Millisecond)

	record, err := e.Execute(context.Background(), testRecommendation("step-one", "step-two"))
	require.NoError(t, err)

	assert.Equal(t, []string{"step-one", "step-two"}, ran)
	assert.Equal(t, OptimizationSuccess, record.Status)
	assert.Equal(t, "system-optimization", record.RecommendationID)
	assert.Equal(t, float64(100), record.Cost)
	assert.Equal(t, float64(-20), record.Improvement["system.cpu"])
	assert.Equal(t, float64(-300), record.Improvement["application.response_time"])

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, record.ID, history[0].ID)
}

func TestExecuteStepFailureIsolated(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("bad-step", func(ctx context.Context) error {
		return errors.New("knob does not exist")
	})

	snapshot := snapshotSequence(map[string]float64{"system.cpu": 90})
	e := NewExecutor(registry, snapshot, time.Millisecond)

	record, err := e.Execute(context.Background(), testRecommendation("bad-step"))
	require.Error(t, err)
	assert.Equal(t, OptimizationFailed, record.Status)
	assert.Contains(t, record.Error, "knob does not exist")

	// A later optimization is unaffected.
	registry.RegisterFunc("good-step", func(ctx context.Context) error { return nil })
	record2, err := e.Execute(context.Background(), testRecommendation("good-step"))
	require.NoError(t, err)
	assert.Equal(t, OptimizationSuccess, record2.Status)

	history := e.History()
	require.Len(t, history, 2)
	assert.Equal(t, OptimizationFailed, history[0].Status)
	assert.Equal(t, OptimizationSuccess, history[1].Status)
}

func TestExecuteSnapshotFailure(t *testing.T) {
	registry := NewRegistry()
	snapshot := func() (map[string]float64, error) {
		return nil, errors.New("no samples")
	}
	e := NewExecutor(registry, snapshot, time.Millisecond)

	record, err := e.Execute(context.Background(), testRecommendation("anything"))
	require.Error(t, err)
	assert.Equal(t, OptimizationFailed, record.Status)
}

func TestExecuteUnknownStepSimulated(t *testing.T) {
	registry := NewRegistry()
	snapshot := snapshotSequence(map[string]float64{"a": 1})
	e := NewExecutor(registry, snapshot, time.Millisecond)

	record, err := e.Execute(context.Background(), testRecommendation("never-registered"))
	require.NoError(t, err)
	assert.Equal(t, OptimizationSuccess, record.Status)
}

func TestExecuteCancelledDuringStabilization(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("noop", func(ctx context.Context) error { return nil })
	snapshot := snapshotSequence(map[string]float64{"a": 1})
	e := NewExecutor(registry, snapshot, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		record, err := e.Execute(ctx, testRecommendation("noop"))
		assert.Error(t, err)
		assert.Equal(t, OptimizationFailed, record.Status)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not honor cancellation")
	}
}

func TestImprovementIntersection(t *testing.T) {
	before := map[string]float64{"a": 5, "b": 10, "only_before": 1}
	after := map[string]float64{"a": 10, "b": 15, "only_after": 2}

	delta := improvement(before, after)
	assert.Equal(t, map[string]float64{"a": 5, "b": 5}, delta)
}

func TestRestoreHistory(t *testing.T) {
	registry := NewRegistry()
	e := NewExecutor(registry, snapshotSequence(map[string]float64{"a": 1}), time.Millisecond)

	e.RestoreHistory([]ImplementedOptimization{
		{ID: "old-1", Status: OptimizationSuccess},
	})
	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, "old-1", history[0].ID)
}
