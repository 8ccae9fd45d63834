package target

import (
	"context"

	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

// Operation names reported to observers.
const (
	OpSet   = "set"
	OpUnset = "unset"
)

// Observer is told about every target operation.
type Observer interface {
	Observe(target, operation string, err error)
}

// Outcome is the result of one operation on one target.
type Outcome struct {
	Target string
	Err    error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Report holds the outcome of an operation for every target, in dispatch
// order.
type Report struct {
	Operation string
	Outcomes  []Outcome
}

// Succeeded returns the names of targets that succeeded.
func (r Report) Succeeded() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.OK() {
			names = append(names, o.Target)
		}
	}
	return names
}

// Failed returns the failed outcomes.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err combines every failure, or returns nil when all targets succeeded.
func (r Report) Err() error {
	errs := &util.MultiError{}
	for _, o := range r.Failed() {
		errs.Add(util.WrapErrorf(o.Err, "%s %s", r.Operation, o.Target))
	}
	return errs.Err()
}

// Snapshot is the settings currently read back from one target.
type Snapshot struct {
	Target   string
	Settings []proxy.Settings
}

// Dispatcher fans operations out to a fixed set of targets. Targets are
// visited sequentially and a failing target never stops the others.
type Dispatcher struct {
	targets  []Target
	observer Observer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver reports every outcome to o.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher creates a dispatcher for the given targets.
func NewDispatcher(targets []Target, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{targets: targets}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Targets returns the dispatched targets.
func (d *Dispatcher) Targets() []Target {
	return d.targets
}

// Apply writes settings to every target.
func (d *Dispatcher) Apply(ctx context.Context, settings []proxy.Settings) Report {
	return d.run(ctx, OpSet, func(ctx context.Context, t Target) error {
		return t.Set(ctx, settings)
	})
}

// Clear removes the proxy configuration from every target.
func (d *Dispatcher) Clear(ctx context.Context) Report {
	return d.run(ctx, OpUnset, func(ctx context.Context, t Target) error {
		return t.Unset(ctx)
	})
}

// Snapshot reads the current settings of every target.
func (d *Dispatcher) Snapshot(ctx context.Context) []Snapshot {
	snapshots := make([]Snapshot, 0, len(d.targets))
	for _, t := range d.targets {
		snapshots = append(snapshots, Snapshot{
			Target:   t.Name(),
			Settings: t.Get(logging.WithTarget(ctx, t.Name())),
		})
	}
	return snapshots
}

func (d *Dispatcher) run(ctx context.Context, op string, fn func(context.Context, Target) error) Report {
	report := Report{Operation: op, Outcomes: make([]Outcome, 0, len(d.targets))}
	for _, t := range d.targets {
		tctx := logging.WithOperation(logging.WithTarget(ctx, t.Name()), op)
		err := fn(tctx, t)
		if err != nil {
			logging.WarnContext(tctx, "target operation failed", "error", err)
		} else {
			logging.DebugContext(tctx, "target operation succeeded")
		}
		if d.observer != nil {
			d.observer.Observe(t.Name(), op, err)
		}
		report.Outcomes = append(report.Outcomes, Outcome{Target: t.Name(), Err: err})
	}
	return report
}
