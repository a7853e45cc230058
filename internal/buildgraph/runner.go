package buildgraph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Executor performs the action of one module task.
type Executor interface {
	Execute(ctx context.Context, m Module, action Action) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, m Module, action Action) error

func (f ExecutorFunc) Execute(ctx context.Context, m Module, action Action) error {
	return f(ctx, m, action)
}

// Result is the outcome of one planned task.
type Result struct {
	Task     string
	Duration time.Duration
	Err      error
	// Ignored marks a lint failure that did not fail the run.
	Ignored bool
	Skipped bool
}

// Runner executes task plans.
type Runner struct {
	graph              *Graph
	tasks              *TaskGraph
	executor           Executor
	logger             *zap.Logger
	ignoreLintFailures bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithIgnoreLintFailures lets lint check failures be reported without
// failing the run.
func WithIgnoreLintFailures(ignore bool) RunnerOption {
	return func(r *Runner) {
		r.ignoreLintFailures = ignore
	}
}

// NewRunner creates a runner over g.
func NewRunner(g *Graph, executor Executor, opts ...RunnerOption) *Runner {
	r := &Runner{
		graph:    g,
		tasks:    g.Tasks(),
		executor: executor,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run plans names and executes the plan in order. The first failing task
// stops the run; the remaining tasks are reported as skipped.
func (r *Runner) Run(ctx context.Context, names ...string) ([]Result, error) {
	plan, err := r.tasks.Plan(names...)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(plan))
	var failure error
	for _, t := range plan {
		if failure != nil || ctx.Err() != nil {
			results = append(results, Result{Task: t.Name, Skipped: true})
			continue
		}
		if t.IsAggregate() {
			results = append(results, Result{Task: t.Name})
			continue
		}

		m, ok := r.graph.Module(t.Module)
		if !ok {
			failure = fmt.Errorf("%s: module %s not found", t.Name, t.Module)
			results = append(results, Result{Task: t.Name, Err: failure})
			continue
		}

		start := time.Now()
		err := r.executor.Execute(ctx, m, t.Action)
		res := Result{Task: t.Name, Duration: time.Since(start), Err: err}
		switch {
		case err == nil:
			r.logger.Info("task done", zap.String("task", t.Name), zap.Duration("duration", res.Duration))
		case t.Action == ActionLintCheck && r.ignoreLintFailures:
			res.Ignored = true
			r.logger.Warn("lint check failed, continuing", zap.String("task", t.Name), zap.Error(err))
		default:
			r.logger.Error("task failed", zap.String("task", t.Name), zap.Error(err))
			failure = fmt.Errorf("%s: %w", t.Name, err)
		}
		results = append(results, res)
	}
	if failure == nil && ctx.Err() != nil {
		failure = ctx.Err()
	}
	return results, failure
}
