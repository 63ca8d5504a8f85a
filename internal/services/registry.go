package services

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
	"github.com/fyrsmithlabs/owera/internal/events"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/scaffold"
	"github.com/fyrsmithlabs/owera/internal/spec"
	"github.com/fyrsmithlabs/owera/internal/worker"
)

// Registry provides access to the run pipeline's collaborators.
type Registry interface {
	Logger() *logging.Logger
	Workers() *worker.Registry
	Parser() *spec.Parser
	Checkpoints() checkpoint.Store
	Events() events.Publisher
	Publisher() *scaffold.Publisher
	Defaults() Defaults
	Tracer() trace.Tracer
	Meter() metric.Meter
}

// Defaults apply to every execution unless overridden per call.
type Defaults struct {
	MaxCycles   int
	Parallelism int
	// Output is the scaffold configuration. Its Dir is the base directory.
	Output  scaffold.Config
	Publish scaffold.PublishOptions
}

// Options configures the registry. Workers is required.
type Options struct {
	Logger      *logging.Logger
	Workers     *worker.Registry
	Checkpoints checkpoint.Store
	Events      events.Publisher
	// Publisher is nil when publishing is disabled.
	Publisher *scaffold.Publisher
	Defaults  Defaults
	Tracer    trace.Tracer
	Meter     metric.Meter
}

type registry struct {
	logger      *logging.Logger
	workers     *worker.Registry
	parser      *spec.Parser
	checkpoints checkpoint.Store
	events      events.Publisher
	publisher   *scaffold.Publisher
	defaults    Defaults
	tracer      trace.Tracer
	meter       metric.Meter
}

// NewRegistry fills unset collaborators with their no-op forms.
func NewRegistry(opts Options) (Registry, error) {
	if opts.Workers == nil {
		return nil, errors.New("services: worker registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = checkpoint.NoOp{}
	}
	if opts.Events == nil {
		opts.Events = events.NoOp{}
	}
	return &registry{
		logger:      opts.Logger,
		workers:     opts.Workers,
		parser:      spec.NewParser(opts.Workers.Planner(), opts.Logger),
		checkpoints: opts.Checkpoints,
		events:      opts.Events,
		publisher:   opts.Publisher,
		defaults:    opts.Defaults,
		tracer:      opts.Tracer,
		meter:       opts.Meter,
	}, nil
}

func (r *registry) Logger() *logging.Logger        { return r.logger }
func (r *registry) Workers() *worker.Registry      { return r.workers }
func (r *registry) Parser() *spec.Parser           { return r.parser }
func (r *registry) Checkpoints() checkpoint.Store  { return r.checkpoints }
func (r *registry) Events() events.Publisher       { return r.events }
func (r *registry) Publisher() *scaffold.Publisher { return r.publisher }
func (r *registry) Defaults() Defaults             { return r.defaults }
func (r *registry) Tracer() trace.Tracer           { return r.tracer }
func (r *registry) Meter() metric.Meter            { return r.meter }
