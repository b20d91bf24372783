package optimizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Step is one named, injectable unit of optimization work. The executor
// treats steps as black boxes: they either succeed or return an error.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

// StepFunc adapts a function into a Step.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context) error
}

func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// Registry resolves implementation step names to runnable units.
// Unknown names fall back to a logged simulation step so a
// recommendation authored against capabilities this host lacks still
// executes end to end.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register binds a step under its name, replacing any previous binding.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Name()] = step
}

// RegisterFunc binds a bare function under a name.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context) error) {
	r.Register(StepFunc{StepName: name, Fn: fn})
}

// Resolve returns the step bound to name, or a simulation fallback.
func (r *Registry) Resolve(name string) Step {
	r.mu.RLock()
	step, ok := r.steps[name]
	r.mu.RUnlock()
	if ok {
		return step
	}
	return simulatedStep{name: name}
}

// Names returns the registered step names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	return names
}

// simulatedStep stands in for capabilities the host did not register. It
// consumes a short delay so sequencing still resembles real execution.
type simulatedStep struct {
	name string
}

func (s simulatedStep) Name() string { return s.name }

func (s simulatedStep) Run(ctx context.Context) error {
	log.Info().Str("step", s.name).Msg("No registered implementation, simulating step")
	select {
	case <-time.After(50 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("simulated step %s cancelled: %w", s.name, ctx.Err())
	}
}
