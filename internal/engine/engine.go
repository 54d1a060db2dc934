// Package engine executes a validated pipeline against in-memory datasets.
//
// Rules run strictly in order, one at a time. Each rule reads the datasets
// bound to its input aliases, runs its action and binds the results to its
// output aliases, replacing earlier bindings. The caller's seed aliases are
// reserved: only single-output actions may rebind them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"geoetl/internal/config"
	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/internal/metrics"
	"geoetl/internal/registry"
	"geoetl/internal/rule"
)

// Resolver finds the implementation of an action. *registry.Registry
// implements it.
type Resolver interface {
	Lookup(name string) (registry.Action, error)
}

// Engine runs pipelines. It holds no per-run state and may be reused.
type Engine struct {
	actions Resolver
	logger  *slog.Logger
	tracer  trace.Tracer
	job     string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer; the default comes from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithJob sets the pipeline label used for metrics. The default is the
// pipeline name.
func WithJob(job string) Option {
	return func(e *Engine) { e.job = job }
}

// New returns an engine resolving actions through actions.
func New(actions Resolver, opts ...Option) *Engine {
	e := &Engine{
		actions: actions,
		logger:  slog.Default(),
		tracer:  otel.Tracer("geoetl/internal/engine"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// StepReport describes one executed rule.
type StepReport struct {
	Index    int
	TaskName string
	Action   string
	Inputs   []string
	Outputs  []string
	RowsIn   []int
	RowsOut  []int
	Duration time.Duration
	// Unchanged is true when every output is the very dataset that was
	// passed in, i.e. the rule was a no-op.
	Unchanged bool
}

// Result is the outcome of a successful run.
type Result struct {
	RunID string
	// Outputs holds the datasets bound to the final aliases.
	Outputs map[string]*dataset.Dataset
	// Order lists the final aliases in their declared order.
	Order []string
	Steps []StepReport
}

// Run executes p. seeds supplies the initial dataset for each alias; every
// alias in p.Inputs must be present. Cancellation of ctx is honoured
// between rules.
func (e *Engine) Run(ctx context.Context, p *config.Pipeline, seeds map[string]*dataset.Dataset) (*Result, error) {
	runID := uuid.NewString()
	job := e.job
	if job == "" {
		job = p.Name
	}
	log := e.logger.With("run_id", runID, "pipeline", p.Name)

	ctx, span := e.tracer.Start(ctx, "pipeline "+p.Name, trace.WithAttributes(
		attribute.String("geoetl.run_id", runID),
		attribute.Int("geoetl.rules", len(p.Rules)),
	))
	defer span.End()

	table := make(map[string]*dataset.Dataset, len(seeds))
	reserved := make(map[string]bool, len(seeds))
	for alias, d := range seeds {
		if d == nil {
			continue
		}
		table[alias] = d
		reserved[alias] = true
	}
	for _, in := range p.Inputs {
		if table[in] == nil {
			err := &AliasResolutionError{Rule: -1, Alias: in, Reason: "no seed dataset supplied", Available: bound(table)}
			fail(span, err)
			return nil, err
		}
	}

	log.Info("engine: run start", "rules", len(p.Rules), "seeds", bound(table))
	res := &Result{RunID: runID}
	start := time.Now()
	for _, r := range p.Rules {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("engine: run cancelled before %s: %w", r.Label(), err)
			fail(span, err)
			return nil, err
		}
		step, err := e.step(ctx, log, job, r, table, reserved)
		if err != nil {
			log.Error("engine: rule failed", "rule", r.Index, "task", r.TaskName, "action", r.Action, "err", err)
			fail(span, err)
			return nil, err
		}
		res.Steps = append(res.Steps, step)
	}

	res.Order = finalAliases(p)
	res.Outputs = make(map[string]*dataset.Dataset, len(res.Order))
	for _, alias := range res.Order {
		d := table[alias]
		if d == nil {
			err := &AliasResolutionError{Rule: -1, Alias: alias, Reason: "final output is not bound", Available: bound(table)}
			fail(span, err)
			return nil, err
		}
		res.Outputs[alias] = d
		metrics.RecordRows(job, "output", int64(d.Len()))
	}
	log.Info("engine: run done", "outputs", res.Order, "elapsed", time.Since(start))
	return res, nil
}

func (e *Engine) step(ctx context.Context, log *slog.Logger, job string, r rule.Rule, table map[string]*dataset.Dataset, reserved map[string]bool) (StepReport, error) {
	ins, outs := r.Inputs(), r.Outputs()
	rep := StepReport{Index: r.Index, TaskName: r.TaskName, Action: r.Action, Inputs: ins, Outputs: outs}

	inputs := make([]*dataset.Dataset, len(ins))
	for i, alias := range ins {
		d := table[alias]
		if d == nil {
			return rep, &AliasResolutionError{Rule: r.Index, Task: r.TaskName, Alias: alias, Reason: "input is not bound", Available: bound(table)}
		}
		inputs[i] = d
		rep.RowsIn = append(rep.RowsIn, d.Len())
	}

	action, err := e.actions.Lookup(r.Action)
	if err != nil {
		return rep, &TransformationError{Rule: r.Index, Task: r.TaskName, Action: r.Action, Err: err}
	}
	if multi(action.Shape, ins, outs) {
		for _, alias := range outs {
			if reserved[alias] {
				return rep, &AliasResolutionError{Rule: r.Index, Task: r.TaskName, Alias: alias, Reason: fmt.Sprintf("%s action may not rebind seed alias", describeShape(action.Shape, ins, outs))}
			}
		}
	}

	rlog := log.With("rule", r.Index, "task", r.TaskName, "action", r.Action)
	sctx, span := e.tracer.Start(ctxlog.WithLogger(ctx, rlog), fmt.Sprintf("rule %d %s", r.Index, r.Action), trace.WithAttributes(
		attribute.String("geoetl.task", r.TaskName),
		attribute.StringSlice("geoetl.inputs", ins),
		attribute.StringSlice("geoetl.outputs", outs),
	))
	defer span.End()

	start := time.Now()
	results, err := invoke(sctx, action, inputs, r.Params)
	rep.Duration = time.Since(start)
	if err == nil {
		err = checkResults(results, outs)
	}
	metrics.RecordRule(job, r.Action, err, rep.Duration)
	if err != nil {
		fail(span, err)
		return rep, &TransformationError{Rule: r.Index, Task: r.TaskName, Action: r.Action, Err: err}
	}

	rep.Unchanged = true
	for i, alias := range outs {
		table[alias] = results[i]
		rep.RowsOut = append(rep.RowsOut, results[i].Len())
		if i >= len(inputs) || results[i] != inputs[i] {
			rep.Unchanged = false
		}
	}
	span.SetAttributes(attribute.IntSlice("geoetl.rows_out", rep.RowsOut))
	rlog.Info("engine: rule done", "rows_in", rep.RowsIn, "rows_out", rep.RowsOut, "unchanged", rep.Unchanged, "elapsed", rep.Duration)
	return rep, nil
}

// invoke runs the action, turning a panic into an error.
func invoke(ctx context.Context, a registry.Action, inputs []*dataset.Dataset, params rule.Params) (out []*dataset.Dataset, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return a.Run(ctx, inputs, params)
}

func checkResults(results []*dataset.Dataset, outs []string) error {
	if len(results) != len(outs) {
		return fmt.Errorf("action returned %d dataset(s), rule binds %d alias(es) %v", len(results), len(outs), outs)
	}
	for i, d := range results {
		if d == nil {
			return fmt.Errorf("action returned no dataset for alias %q", outs[i])
		}
	}
	return nil
}

// multi reports whether a rule reads or writes more than one alias.
func multi(shape registry.Shape, ins, outs []string) bool {
	return shape == registry.FanIn || shape == registry.FanOut || len(ins) > 1 || len(outs) > 1
}

// finalAliases returns the declared outputs, else those of the last rule,
// else the seeds.
func finalAliases(p *config.Pipeline) []string {
	switch {
	case len(p.Outputs) > 0:
		return append([]string(nil), p.Outputs...)
	case len(p.Rules) > 0:
		return p.Rules[len(p.Rules)-1].Outputs()
	}
	return append([]string(nil), p.Inputs...)
}

func bound(table map[string]*dataset.Dataset) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
