package optimizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/analyzer/pkg/analyzer"
)

// OptimizationStatus is the recorded outcome of one execution attempt.
type OptimizationStatus string

const (
	OptimizationSuccess OptimizationStatus = "success"
	OptimizationPartial OptimizationStatus = "partial"
	OptimizationFailed  OptimizationStatus = "failed"
)

// DefaultStabilizationDelay is the wait between step execution and the
// after-snapshot so metrics can settle.
const DefaultStabilizationDelay = 30 * time.Second

// ImplementedOptimization is the immutable record of one executed
// recommendation. History is append-only.
type ImplementedOptimization struct {
	ID               string             `json:"id"`
	RecommendationID string             `json:"recommendation_id"`
	ImplementedAt    time.Time          `json:"implemented_at"`
	Before           map[string]float64 `json:"before"`
	After            map[string]float64 `json:"after"`
	Improvement      map[string]float64 `json:"improvement"`
	Cost             float64            `json:"cost"`
	Status           OptimizationStatus `json:"status"`
	Error            string             `json:"error,omitempty"`
}

// SnapshotFunc captures the current flattened metric state. The executor
// diffs two of these around step execution.
type SnapshotFunc func() (map[string]float64, error)

// Executor runs a recommendation's implementation steps with
// before/after metric capture. Execution is strictly serial; a failing
// step aborts only its own optimization.
type Executor struct {
	registry      *Registry
	snapshot      SnapshotFunc
	stabilization time.Duration

	mu      sync.RWMutex
	history []ImplementedOptimization
}

// NewExecutor builds an executor. A zero stabilization delay means
// DefaultStabilizationDelay.
func NewExecutor(registry *Registry, snapshot SnapshotFunc, stabilization time.Duration) *Executor {
	if stabilization == 0 {
		stabilization = DefaultStabilizationDelay
	}
	return &Executor{
		registry:      registry,
		snapshot:      snapshot,
		stabilization: stabilization,
	}
}

// Execute runs one recommendation end to end and appends the outcome to
// history. The returned record is also delivered on error so callers can
// report the failed attempt.
func (e *Executor) Execute(ctx context.Context, rec analyzer.Recommendation) (ImplementedOptimization, error) {
	record := ImplementedOptimization{
		ID:               uuid.New().String(),
		RecommendationID: rec.ID,
		ImplementedAt:    time.Now(),
		Cost:             rec.EstimatedCost,
		Status:           OptimizationFailed,
	}

	log.Info().
		Str("recommendation", rec.ID).
		Int("steps", len(rec.Implementation.Steps)).
		Msg("Executing optimization")

	before, err := e.snapshot()
	if err != nil {
		record.Error = err.Error()
		e.append(record)
		return record, fmt.Errorf("before-snapshot failed: %w", err)
	}
	record.Before = before

	for _, stepName := range rec.Implementation.Steps {
		step := e.registry.Resolve(stepName)
		if err := step.Run(ctx); err != nil {
			record.Error = err.Error()
			e.append(record)
			return record, fmt.Errorf("step %s failed: %w", stepName, err)
		}
	}

	// Cooperative wait; the host keeps running while metrics settle.
	select {
	case <-time.After(e.stabilization):
	case <-ctx.Done():
		record.Error = ctx.Err().Error()
		e.append(record)
		return record, fmt.Errorf("stabilization interrupted: %w", ctx.Err())
	}

	after, err := e.snapshot()
	if err != nil {
		record.Error = err.Error()
		e.append(record)
		return record, fmt.Errorf("after-snapshot failed: %w", err)
	}
	record.After = after

	record.Improvement = improvement(before, after)
	record.Status = OptimizationSuccess
	record.Error = ""
	e.append(record)

	log.Info().
		Str("recommendation", rec.ID).
		Str("optimization", record.ID).
		Int("metrics_compared", len(record.Improvement)).
		Msg("Optimization completed")
	return record, nil
}

// improvement is after-before for every numeric metric present in both
// snapshots. No automatic rollback happens on regressions; negative
// values are recorded as-is.
func improvement(before, after map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for k, b := range before {
		if a, ok := after[k]; ok {
			out[k] = a - b
		}
	}
	return out
}

func (e *Executor) append(record ImplementedOptimization) {
	e.mu.Lock()
	e.history = append(e.history, record)
	e.mu.Unlock()
}

// History returns a copy of the append-only optimization history.
func (e *Executor) History() []ImplementedOptimization {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]ImplementedOptimization(nil), e.history...)
}

// RestoreHistory seeds history from a persisted snapshot. Used on
// startup before the scheduler starts; not safe to call concurrently
// with Execute.
func (e *Executor) RestoreHistory(records []ImplementedOptimization) {
	e.mu.Lock()
	e.history = append([]ImplementedOptimization(nil), records...)
	e.mu.Unlock()
}
