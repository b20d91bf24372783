package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Comparison grades one metric of a run against the stored baseline.
type Comparison string

const (
	ComparisonBetter Comparison = "better"
	ComparisonSame   Comparison = "same"
	ComparisonWorse  Comparison = "worse"
)

// comparisonBand is the relative band within which a metric counts as
// unchanged against the baseline.
const comparisonBand = 0.05

// Result captures one benchmark execution.
type Result struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Timestamp  time.Time             `json:"timestamp"`
	Metrics    map[string]float64    `json:"metrics"`
	Baseline   map[string]float64    `json:"baseline,omitempty"`
	Comparison map[string]Comparison `json:"comparison,omitempty"`
	Score      float64               `json:"score"`
}

// workload is a synthetic benchmark body. It returns the metrics it
// measured beyond wall-clock duration, which the runner adds itself.
type workload struct {
	name      string
	run       func() map[string]float64
	refMillis float64 // duration at which the time penalty reaches zero score contribution
	refHeapKB float64 // heap delta reference, 0 when heap is not relevant
}

// Runner executes a fixed suite of synthetic workloads sequentially and
// scores them against a process-wide baseline seeded on the first run.
type Runner struct {
	mu           sync.Mutex
	suite        []workload
	baseline     map[string]float64 // benchmark name -> score
	baselinePath string
}

// NewRunner builds the fixed suite. baselinePath may be empty, in which
// case the baseline lives only in memory.
func NewRunner(baselinePath string) *Runner {
	return &Runner{
		suite: []workload{
			{name: "cpu-arithmetic", run: cpuArithmetic, refMillis: 200},
			{name: "memory-allocation", run: memoryAllocation, refMillis: 300, refHeapKB: 64 * 1024},
			{name: "sort-ints", run: sortInts, refMillis: 250},
			{name: "json-roundtrip", run: jsonRoundtrip, refMillis: 250},
		},
		baseline:     make(map[string]float64),
		baselinePath: baselinePath,
	}
}

// RunInitial runs the suite once and seeds the baseline from the scores.
// Later runs compare against this baseline but never overwrite it.
func (r *Runner) RunInitial(ctx context.Context) []Result {
	results := r.RunSuite(ctx)

	r.mu.Lock()
	for _, res := range results {
		if _, seeded := r.baseline[res.Name]; !seeded {
			r.baseline[res.Name] = res.Score
		}
	}
	r.mu.Unlock()

	if err := r.SaveBaseline(); err != nil {
		log.Warn().Err(err).Msg("Failed to persist benchmark baseline")
	}
	return results
}

// RunSuite executes every workload sequentially. Benchmarks measure
// wall-clock cost, so they must not run concurrently. A panicking
// workload is logged and excluded; it never aborts the suite.
func (r *Runner) RunSuite(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.suite))
	for _, w := range r.suite {
		if ctx.Err() != nil {
			break
		}
		res, err := r.runOne(w)
		if err != nil {
			log.Error().Err(err).Str("benchmark", w.name).Msg("Benchmark failed, excluding from cycle")
			continue
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) runOne(w workload) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("benchmark %s panicked: %v", w.name, rec)
		}
	}()

	start := time.Now()
	extra := w.run()
	elapsed := time.Since(start)

	m := map[string]float64{
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	}
	for k, v := range extra {
		m[k] = v
	}

	result = Result{
		ID:        uuid.New().String(),
		Name:      w.name,
		Timestamp: start,
		Metrics:   m,
		Score:     score(w, m),
	}

	r.mu.Lock()
	if base, ok := r.baseline[w.name]; ok {
		result.Baseline = map[string]float64{"score": base}
		result.Comparison = map[string]Comparison{"score": compare(result.Score, base)}
	}
	r.mu.Unlock()

	log.Debug().
		Str("benchmark", w.name).
		Dur("elapsed", elapsed).
		Float64("score", result.Score).
		Msg("Benchmark completed")
	return result, nil
}

// score is max(0, 100 - penalties). The duration penalty scales linearly
// against the workload's reference duration (a run at the reference
// costs 50 points); the heap penalty likewise against the heap
// reference when one is set.
func score(w workload, m map[string]float64) float64 {
	s := 100.0
	if w.refMillis > 0 {
		s -= m["duration_ms"] / w.refMillis * 50
	}
	if w.refHeapKB > 0 {
		if heap, ok := m["heap_delta_kb"]; ok {
			s -= heap / w.refHeapKB * 25
		}
	}
	if s < 0 {
		return 0
	}
	return s
}

func compare(current, baseline float64) Comparison {
	if baseline == 0 {
		return ComparisonSame
	}
	delta := (current - baseline) / baseline
	switch {
	case delta > comparisonBand:
		return ComparisonBetter
	case delta < -comparisonBand:
		return ComparisonWorse
	default:
		return ComparisonSame
	}
}

// Baseline returns a copy of the seeded baseline scores.
func (r *Runner) Baseline() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.baseline))
	for k, v := range r.baseline {
		out[k] = v
	}
	return out
}

// SaveBaseline writes the baseline map to the configured JSON file.
func (r *Runner) SaveBaseline() error {
	if r.baselinePath == "" {
		return nil
	}
	r.mu.Lock()
	data, err := json.MarshalIndent(r.baseline, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	if err := os.WriteFile(r.baselinePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write baseline file: %w", err)
	}
	return nil
}

// ReloadBaseline replaces the in-memory baseline with the persisted one.
// This is the only way an existing baseline is ever replaced.
func (r *Runner) ReloadBaseline() error {
	if r.baselinePath == "" {
		return nil
	}
	data, err := os.ReadFile(r.baselinePath)
	if err != nil {
		return fmt.Errorf("failed to read baseline file: %w", err)
	}
	loaded := make(map[string]float64)
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse baseline file: %w", err)
	}

	r.mu.Lock()
	r.baseline = loaded
	r.mu.Unlock()

	log.Info().Int("benchmarks", len(loaded)).Str("path", r.baselinePath).Msg("Benchmark baseline reloaded")
	return nil
}

// --- synthetic workloads ---

func cpuArithmetic() map[string]float64 {
	var acc float64
	for i := 1; i <= 2_000_000; i++ {
		acc += float64(i%97) * 1.0001
		if i%7 == 0 {
			acc /= 1.0003
		}
	}
	return map[string]float64{"accumulator": acc}
}

func memoryAllocation() map[string]float64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	buf := make([][]byte, 0, 1024)
	for i := 0; i < 1024; i++ {
		buf = append(buf, make([]byte, 4096))
	}
	for i := range buf {
		buf[i][0] = byte(i)
	}

	runtime.ReadMemStats(&after)
	heapDelta := float64(after.HeapAlloc) - float64(before.HeapAlloc)
	if heapDelta < 0 {
		heapDelta = 0
	}
	return map[string]float64{"heap_delta_kb": heapDelta / 1024}
}

func sortInts() map[string]float64 {
	n := 200_000
	data := make([]int, n)
	seed := 1103515245
	for i := range data {
		seed = seed*1103515245 + 12345
		data[i] = seed % 1_000_000
	}
	sort.Ints(data)
	return map[string]float64{"elements": float64(n)}
}

func jsonRoundtrip() map[string]float64 {
	type payload struct {
		Name   string    `json:"name"`
		Values []float64 `json:"values"`
		Nested map[string]int
	}
	p := payload{Name: "bench", Values: make([]float64, 512), Nested: map[string]int{"a": 1, "b": 2}}
	for i := range p.Values {
		p.Values[i] = float64(i) * 0.5
	}

	var rounds int
	for i := 0; i < 200; i++ {
		data, err := json.Marshal(p)
		if err != nil {
			panic(err)
		}
		var out payload
		if err := json.Unmarshal(data, &out); err != nil {
			panic(err)
		}
		rounds++
	}
	return map[string]float64{"rounds": float64(rounds)}
}
