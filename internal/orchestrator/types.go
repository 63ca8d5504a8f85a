package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
	"github.com/fyrsmithlabs/owera/internal/events"
	"github.com/fyrsmithlabs/owera/internal/llm"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/fyrsmithlabs/owera/internal/worker"
)

// DefaultMaxCycles bounds a run when Options.MaxCycles is unset.
const DefaultMaxCycles = 100

// Outcome is why a run stopped.
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeDeadlock  Outcome = "deadlock"
	OutcomeCeiling   Outcome = "ceiling"
	OutcomeCancelled Outcome = "cancelled"
)

// ProgressKind tells what a Progress update reports.
type ProgressKind string

const (
	ProgressCycle    ProgressKind = "cycle"
	ProgressTask     ProgressKind = "task"
	ProgressFinished ProgressKind = "finished"
)

// Progress is reported at the start of every cycle, after every task and
// once when the run stops.
type Progress struct {
	Kind      ProgressKind
	RunID     string
	Cycle     int
	MaxCycles int
	// Task is set for ProgressTask.
	Task    *project.Task
	Message string
	// Outcome is set for ProgressFinished.
	Outcome  Outcome
	Snapshot project.Snapshot
}

// Steps returns the completed and total lifecycle steps, four per feature.
func (p Progress) Steps() (done, total int) {
	for _, f := range p.Snapshot.Features {
		for _, set := range []bool{f.HasDesign, f.HasImplementation, f.HasPassedTests, f.IsApproved} {
			if set {
				done++
			}
		}
	}
	return done, 4 * len(p.Snapshot.Features)
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Scheduler creates the tasks the lifecycle rules call for.
type Scheduler interface {
	Schedule(ctx context.Context, p *project.Project) ([]project.Task, error)
}

// Options configures a Loop. Only Client or Workers is required.
type Options struct {
	Logger *logging.Logger

	// Client backs the default worker registry. Ignored when Workers is set.
	Client llm.Client
	// ModelOptions apply to every call of the default registry.
	ModelOptions llm.Options
	Classifier   worker.Classifier
	Workers      *worker.Registry

	Scheduler Scheduler

	// MaxCycles defaults to DefaultMaxCycles.
	MaxCycles int
	// Parallelism above 1 dispatches distinct features concurrently.
	Parallelism int

	Progress    ProgressFunc
	Checkpoints checkpoint.Store
	Events      events.Publisher

	Tracer trace.Tracer
	Meter  metric.Meter
}

// Result is returned by Run for every outcome.
type Result struct {
	Outcome       Outcome
	Cycles        int
	Snapshot      project.Snapshot
	Retrospective Retrospective
	Duration      time.Duration
}
