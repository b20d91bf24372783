package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/perfwatch/analyzer/pkg/analyzer"
	"github.com/perfwatch/analyzer/pkg/benchmark"
	"github.com/perfwatch/analyzer/pkg/config"
	"github.com/perfwatch/analyzer/pkg/metrics"
	"github.com/perfwatch/analyzer/pkg/optimizer"
	"github.com/perfwatch/analyzer/pkg/storage"
)

const tracerName = "github.com/perfwatch/analyzer/pkg/engine"

// Options carries the optional collaborators an embedding host can
// supply to New.
type Options struct {
	// Archive persists samples, analyses and optimizations across
	// restarts. Nil disables archiving.
	Archive *storage.Archive
	// Registry supplies host-registered optimization steps. Nil means a
	// fresh registry (steps resolve to simulations until registered).
	Registry *optimizer.Registry
}

// Engine owns the periodic analysis cycle and the public read/write
// surface. All mutable history is written only by the engine's own
// cycle; readers get defensive copies.
type Engine struct {
	cfg      *config.Config
	store    *metrics.Store
	scorer   *analyzer.Scorer
	trends   *analyzer.TrendAnalyzer
	detector *analyzer.BottleneckDetector
	recs     *analyzer.RecommendationEngine
	bench    *benchmark.Runner
	registry *optimizer.Registry
	executor *optimizer.Executor
	archive  *storage.Archive
	bus      *EventBus

	mu              sync.RWMutex
	currentAnalysis *Analysis
	analysisHistory []*Analysis
	cycleRunning    bool
	cycleCount      uint64
	failedCycles    uint64
	startedAt       time.Time

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New wires the engine from configuration. Start must be called before
// the periodic cycle runs; until then the engine only ingests samples.
func New(cfg *config.Config, opts Options) *Engine {
	registry := opts.Registry
	if registry == nil {
		registry = optimizer.NewRegistry()
	}

	store := metrics.NewStore(cfg.Analysis.RetentionPeriod, cfg.Analysis.SampleInterval)

	snapshot := func() (map[string]float64, error) {
		latest, ok := store.Latest()
		if !ok {
			return nil, fmt.Errorf("no metric samples available")
		}
		return latest.Flatten(), nil
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		scorer:   analyzer.NewScorer(cfg.Analysis.Thresholds),
		trends:   analyzer.NewTrendAnalyzer(),
		detector: analyzer.NewBottleneckDetector(cfg.Analysis.Thresholds),
		recs:     analyzer.NewRecommendationEngine(),
		bench:    benchmark.NewRunner(cfg.Benchmark.BaselinePath),
		registry: registry,
		executor: optimizer.NewExecutor(registry, snapshot, cfg.Optimization.StabilizationDelay),
		archive:  opts.Archive,
		bus:      NewEventBus(128),
	}
	return e
}

// Events exposes the engine's event bus for subscriber registration.
func (e *Engine) Events() *EventBus {
	return e.bus
}

// StepRegistry exposes the optimization step registry so hosts can bind
// real capabilities.
func (e *Engine) StepRegistry() *optimizer.Registry {
	return e.registry
}

// AddMetrics ingests one sample from the external collector. It never
// rejects and never returns an error; malformed samples are stored
// as-is.
func (e *Engine) AddMetrics(sample metrics.Sample) {
	e.store.Add(sample)
	if e.archive != nil {
		if err := e.archive.SaveSample(context.Background(), sample); err != nil {
			log.Warn().Err(err).Msg("Failed to archive metric sample")
		}
	}
}

// Restore reloads optimization history and recent samples from the
// archive. Call before Start.
func (e *Engine) Restore(ctx context.Context) error {
	if e.archive == nil {
		return nil
	}

	records, err := e.archive.LoadOptimizations(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore optimization history: %w", err)
	}
	e.executor.RestoreHistory(records)

	cutoff := time.Now().Add(-e.cfg.Analysis.RetentionPeriod)
	samples, err := e.archive.LoadRecentSamples(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to restore samples: %w", err)
	}
	for _, s := range samples {
		e.store.Add(s)
	}

	log.Info().
		Int("optimizations", len(records)).
		Int("samples", len(samples)).
		Msg("Engine state restored from archive")
	return nil
}

// Start seeds the benchmark baseline (when benchmarks are enabled) and
// launches the periodic analysis loop.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.startedAt = time.Now()
	e.mu.Unlock()

	if e.cfg.Benchmark.Enabled {
		if e.cfg.Benchmark.BaselinePath == "" {
			e.bench.RunInitial(ctx)
		} else if err := e.bench.ReloadBaseline(); err != nil {
			log.Debug().Err(err).Msg("No persisted baseline, seeding from initial run")
			e.bench.RunInitial(ctx)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.loop(loopCtx)

	e.bus.Publish(EventAnalyzerInitialized, nil)
	log.Info().
		Dur("interval", e.cfg.Analysis.Interval).
		Dur("retention", e.cfg.Analysis.RetentionPeriod).
		Bool("auto_optimization", e.cfg.Optimization.AutoOptimization).
		Bool("benchmarks", e.cfg.Benchmark.Enabled).
		Msg("Analysis engine started")
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Analysis.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle executes one analysis cycle. The tick is skipped, not
// queued, when a cycle is already in progress or no samples exist.
func (e *Engine) RunCycle(ctx context.Context) {
	e.mu.Lock()
	if e.cycleRunning {
		e.mu.Unlock()
		log.Debug().Msg("Previous cycle still running, skipping tick")
		return
	}
	if e.store.Len() == 0 {
		e.mu.Unlock()
		log.Debug().Msg("No metric samples, skipping cycle")
		return
	}
	e.cycleRunning = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.cycleRunning = false
		e.mu.Unlock()
	}()

	analysis, err := e.runCycle(ctx)
	if err != nil {
		e.mu.Lock()
		e.failedCycles++
		e.mu.Unlock()
		log.Error().Err(err).Msg("Analysis cycle failed")
		e.bus.Publish(EventAnalysisFailed, err.Error())
		return
	}

	e.bus.Publish(EventAnalysisCompleted, analysis.clone())

	if e.cfg.Optimization.AutoOptimization {
		e.autoOptimize(ctx, analysis.Recommendations)
	}
}

// runCycle is the fixed-order pipeline: score, trend, detect, recommend,
// benchmark, assemble, append, prune. A panic anywhere is converted to
// an error so the engine never takes the host down.
func (e *Engine) runCycle(ctx context.Context) (analysis *Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			analysis = nil
			err = fmt.Errorf("analysis cycle panicked: %v", r)
		}
	}()

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "analysis.cycle")
	defer span.End()

	started := time.Now()
	latest, ok := e.store.Latest()
	if !ok {
		return nil, fmt.Errorf("metrics store emptied mid-cycle")
	}
	window := e.store.Recent(e.cfg.Analysis.TrendWindow)

	categories, overall := e.scorer.ScoreAll(latest)

	trends := e.trends.AnalyzeSamples(window)
	for category, cs := range categories {
		cs.Trend = e.trends.CategoryTrend(category, window)
		categories[category] = cs
	}

	bottlenecks := e.detector.Detect(latest)
	recommendations := e.recs.Generate(categories, bottlenecks)

	var benchmarks []benchmark.Result
	if e.cfg.Benchmark.Enabled {
		benchmarks = e.bench.RunSuite(ctx)
	}

	analysis = &Analysis{
		Timestamp:       started,
		Period:          e.cfg.Analysis.Interval,
		OverallScore:    overall,
		Status:          analyzer.StatusFromScore(overall),
		Categories:      categories,
		Bottlenecks:     bottlenecks,
		Recommendations: recommendations,
		Trends:          trends,
		Benchmarks:      benchmarks,
	}

	e.mu.Lock()
	e.currentAnalysis = analysis
	e.analysisHistory = append(e.analysisHistory, analysis)
	e.pruneHistoryLocked(time.Now())
	e.cycleCount++
	e.mu.Unlock()

	e.store.Prune(time.Now())

	if e.archive != nil {
		if err := e.archive.SaveAnalysis(ctx, analysis.Timestamp, analysis.OverallScore, analysis); err != nil {
			log.Warn().Err(err).Msg("Failed to archive analysis")
		}
		if err := e.archive.Prune(ctx, e.cfg.Analysis.RetentionPeriod); err != nil {
			log.Warn().Err(err).Msg("Failed to prune archive")
		}
	}

	span.SetAttributes(
		attribute.Float64("analysis.overall_score", overall),
		attribute.Int("analysis.bottlenecks", len(bottlenecks)),
		attribute.Int("analysis.recommendations", len(recommendations)),
	)

	log.Info().
		Float64("overall_score", overall).
		Str("status", string(analysis.Status)).
		Int("bottlenecks", len(bottlenecks)).
		Int("recommendations", len(recommendations)).
		Dur("elapsed", time.Since(started)).
		Msg("Analysis cycle completed")
	return analysis, nil
}

func (e *Engine) pruneHistoryLocked(now time.Time) {
	cutoff := now.Add(-e.cfg.Analysis.RetentionPeriod)
	kept := e.analysisHistory[:0]
	for _, a := range e.analysisHistory {
		if !a.Timestamp.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(e.analysisHistory); i++ {
		e.analysisHistory[i] = nil
	}
	e.analysisHistory = kept
}

// autoOptimize runs qualifying recommendations sequentially. Only
// priority-high, risk-low entries in a configured target category pass
// the gate; everything else waits for an external
// ExecuteRecommendation call.
func (e *Engine) autoOptimize(ctx context.Context, recommendations []analyzer.Recommendation) {
	targets := make(map[analyzer.Category]struct{}, len(e.cfg.Optimization.Targets))
	for _, t := range e.cfg.Optimization.Targets {
		targets[analyzer.Category(t)] = struct{}{}
	}

	for _, rec := range recommendations {
		if !rec.AutoExecutable() {
			continue
		}
		if len(targets) > 0 {
			if _, ok := targets[rec.Category]; !ok {
				log.Debug().Str("recommendation", rec.ID).Msg("Category not in optimization targets, skipping")
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		e.ExecuteRecommendation(ctx, rec)
	}
}

// ExecuteRecommendation runs one recommendation through the executor
// and publishes the outcome. Failures affect only this recommendation.
func (e *Engine) ExecuteRecommendation(ctx context.Context, rec analyzer.Recommendation) optimizer.ImplementedOptimization {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "optimization.execute")
	span.SetAttributes(attribute.String("recommendation.id", rec.ID))
	defer span.End()

	record, err := e.executor.Execute(ctx, rec)
	if e.archive != nil {
		if archiveErr := e.archive.SaveOptimization(context.Background(), record); archiveErr != nil {
			log.Warn().Err(archiveErr).Msg("Failed to archive optimization record")
		}
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.bus.Publish(EventOptimizationFailed, FailedOptimization{
			Recommendation: rec,
			Record:         record,
			Error:          err.Error(),
		})
		return record
	}

	e.bus.Publish(EventOptimizationComplete, record)
	return record
}

// CurrentAnalysis returns a copy of the most recent analysis, or nil
// before the first cycle.
func (e *Engine) CurrentAnalysis() *Analysis {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentAnalysis.clone()
}

// Recommendations returns the current cycle's recommendations.
func (e *Engine) Recommendations() []analyzer.Recommendation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.currentAnalysis == nil {
		return nil
	}
	return append([]analyzer.Recommendation(nil), e.currentAnalysis.Recommendations...)
}

// Bottlenecks returns the current cycle's bottlenecks.
func (e *Engine) Bottlenecks() []analyzer.Bottleneck {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.currentAnalysis == nil {
		return nil
	}
	return append([]analyzer.Bottleneck(nil), e.currentAnalysis.Bottlenecks...)
}

// OptimizationHistory returns a copy of the append-only optimization
// history.
func (e *Engine) OptimizationHistory() []optimizer.ImplementedOptimization {
	return e.executor.History()
}

// AnalysisHistory returns copies of every retained analysis, oldest
// first.
func (e *Engine) AnalysisHistory() []*Analysis {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Analysis, 0, len(e.analysisHistory))
	for _, a := range e.analysisHistory {
		out = append(out, a.clone())
	}
	return out
}

// Report assembles the ROI report over the optimization history.
func (e *Engine) Report() OptimizationReport {
	return buildReport(e.executor.History())
}

// HealthSnapshot is the engine's liveness summary for the HTTP surface.
type HealthSnapshot struct {
	Uptime       time.Duration `json:"uptime"`
	Samples      int           `json:"samples"`
	Cycles       uint64        `json:"cycles"`
	FailedCycles uint64        `json:"failed_cycles"`
	LastCycle    time.Time     `json:"last_cycle,omitempty"`
	CycleRunning bool          `json:"cycle_running"`
}

// Health reports the engine's operational counters.
func (e *Engine) Health() HealthSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hs := HealthSnapshot{
		Samples:      e.store.Len(),
		Cycles:       e.cycleCount,
		FailedCycles: e.failedCycles,
		CycleRunning: e.cycleRunning,
	}
	if !e.startedAt.IsZero() {
		hs.Uptime = time.Since(e.startedAt)
	}
	if e.currentAnalysis != nil {
		hs.LastCycle = e.currentAnalysis.Timestamp
	}
	return hs
}

// Shutdown stops the timer, waits for the in-flight cycle, persists
// state and emits the final shutdown-tagged analysis. Safe to call
// once; later calls are no-ops.
func (e *Engine) Shutdown(ctx context.Context) {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		e.wg.Wait()

		if e.cfg.Benchmark.Enabled {
			if err := e.bench.SaveBaseline(); err != nil {
				log.Warn().Err(err).Msg("Failed to persist benchmark baseline on shutdown")
			}
		}
		if e.cfg.Reporting.Enabled {
			if err := e.writeShutdownArtifacts(); err != nil {
				log.Warn().Err(err).Msg("Failed to write shutdown artifacts")
			}
		}

		e.mu.RLock()
		final := e.currentAnalysis.clone()
		e.mu.RUnlock()
		if final != nil {
			final.ShutdownReport = true
			e.bus.Publish(EventAnalysisCompleted, final)
		}
		e.bus.Publish(EventAnalyzerShutdown, nil)

		// Give the bus a beat to drain, then stop dispatch.
		e.bus.Close()

		log.Info().Msg("Analysis engine stopped")
	})
}

// writeShutdownArtifacts persists the history snapshot and the final
// ROI report as timestamped JSON files.
func (e *Engine) writeShutdownArtifacts() error {
	if err := os.MkdirAll(e.cfg.Reporting.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")

	snapshot := struct {
		Analyses      []*Analysis                         `json:"analyses"`
		Optimizations []optimizer.ImplementedOptimization `json:"optimizations"`
	}{
		Analyses:      e.AnalysisHistory(),
		Optimizations: e.executor.History(),
	}
	if err := writeJSON(filepath.Join(e.cfg.Reporting.OutputDir, fmt.Sprintf("history-%s.json", stamp)), snapshot); err != nil {
		return err
	}

	report := e.Report()
	return writeJSON(filepath.Join(e.cfg.Reporting.OutputDir, fmt.Sprintf("report-%s.json", stamp)), report)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
