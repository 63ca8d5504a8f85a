package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
	"github.com/fyrsmithlabs/owera/internal/events"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/fyrsmithlabs/owera/internal/scheduler"
	"github.com/fyrsmithlabs/owera/internal/worker"
)

// Loop runs the orchestration cycle. A Loop holds no per-run state and may
// run several projects one after another.
type Loop struct {
	logger      *logging.Logger
	workers     *worker.Registry
	scheduler   Scheduler
	maxCycles   int
	parallelism int
	checkpoints checkpoint.Store
	events      events.Publisher
	tracer      trace.Tracer
	inst        *instruments

	progressMu sync.Mutex
	progress   ProgressFunc
}

// New builds a Loop from opts.
func New(opts Options) (*Loop, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Workers == nil {
		if opts.Client == nil {
			return nil, errors.New("orchestrator requires a model client or a worker registry")
		}
		reg, err := worker.NewRegistry(worker.Deps{
			Client:     opts.Client,
			Options:    opts.ModelOptions,
			Classifier: opts.Classifier,
		})
		if err != nil {
			return nil, fmt.Errorf("build worker registry: %w", err)
		}
		opts.Workers = reg
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New()
	}
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = DefaultMaxCycles
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = checkpoint.NoOp{}
	}
	if opts.Events == nil {
		opts.Events = events.NoOp{}
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer("")
	}
	if opts.Meter == nil {
		opts.Meter = metricnoop.NewMeterProvider().Meter("")
	}

	logger := opts.Logger.Named("orchestrator")
	return &Loop{
		logger:      logger,
		workers:     opts.Workers,
		scheduler:   opts.Scheduler,
		maxCycles:   opts.MaxCycles,
		parallelism: opts.Parallelism,
		checkpoints: opts.Checkpoints,
		events:      opts.Events,
		tracer:      opts.Tracer,
		inst:        newInstruments(opts.Meter, logger.Underlying()),
		progress:    opts.Progress,
	}, nil
}

// MaxCycles returns the configured ceiling.
func (l *Loop) MaxCycles() int { return l.maxCycles }

// Run drives p until it completes, deadlocks, hits the ceiling or ctx is
// cancelled. Only cancellation and project bookkeeping failures return an
// error; the Result is always populated.
func (l *Loop) Run(ctx context.Context, p *project.Project) (*Result, error) {
	if p == nil {
		return nil, errors.New("project is required")
	}
	start := time.Now()
	runID := p.RunID()

	ctx = logging.WithRun(ctx, runID)
	ctx = logging.WithLogger(ctx, l.logger)
	ctx, span := l.tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("project.name", p.Name()),
		attribute.Int("features", len(p.Features())),
		attribute.Int("max_cycles", l.maxCycles),
	))
	defer span.End()

	l.logger.Info(ctx, "run started",
		zap.String("project", p.Name()),
		zap.Int("features", len(p.Features())),
		zap.Int("max_cycles", l.maxCycles),
	)
	l.publish(ctx, events.Event{Type: events.RunStarted, RunID: runID, Message: p.Name()})

	var (
		outcome Outcome
		runErr  error
		cycle   int
	)
	for !p.IsComplete() && cycle < l.maxCycles {
		if err := ctx.Err(); err != nil {
			outcome, runErr = OutcomeCancelled, err
			break
		}
		cycle++
		stop, err := l.runCycle(ctx, p, cycle)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				outcome, runErr = OutcomeCancelled, err
			} else {
				runErr = err
			}
			break
		}
		if stop != "" {
			outcome = stop
			break
		}
	}

	if outcome == "" && runErr == nil {
		if p.IsComplete() {
			outcome = OutcomeComplete
		} else {
			outcome = OutcomeCeiling
			l.logger.Warn(ctx, "cycle ceiling reached",
				zap.Int("cycles", cycle),
				zap.Int("open_issues", p.Snapshot().OpenIssues()),
			)
		}
	}
	if outcome == "" {
		// Aborted by a bookkeeping failure.
		outcome = OutcomeCancelled
		if p.IsComplete() {
			outcome = OutcomeComplete
		}
	}

	snap := p.Snapshot()
	res := &Result{
		Outcome:       outcome,
		Cycles:        cycle,
		Snapshot:      snap,
		Retrospective: NewRetrospective(snap, cycle, outcome),
		Duration:      time.Since(start),
	}

	l.inst.run(ctx, outcome)
	span.SetAttributes(attribute.String("outcome", string(outcome)), attribute.Int("cycles", cycle))
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	r := res.Retrospective
	l.logger.Info(ctx, "run finished",
		zap.String("outcome", string(outcome)),
		zap.Int("cycles", cycle),
		zap.Int("tasks", r.Tasks),
		zap.Int("done", r.Done),
		zap.Int("failed", r.Failed),
		zap.Int("open", r.Open),
		zap.Int("issues", r.Issues),
		zap.Duration("duration", res.Duration),
	)
	l.publish(context.WithoutCancel(ctx), events.Event{Type: events.RunFinished, RunID: runID, Cycle: cycle, Outcome: string(outcome)})
	l.report(Progress{Kind: ProgressFinished, RunID: runID, Cycle: cycle, MaxCycles: l.maxCycles, Outcome: outcome, Snapshot: snap})

	return res, runErr
}

// runCycle executes one cycle. A non-empty Outcome stops the run.
func (l *Loop) runCycle(ctx context.Context, p *project.Project, cycle int) (Outcome, error) {
	ctx = logging.WithCycle(ctx, cycle)
	ctx, span := l.tracer.Start(ctx, "orchestrator.cycle", trace.WithAttributes(attribute.Int("cycle", cycle)))
	defer span.End()

	l.inst.cycle(ctx)
	l.publish(ctx, events.Event{Type: events.CycleStarted, RunID: p.RunID(), Cycle: cycle})

	created, err := l.scheduler.Schedule(ctx, p)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("schedule cycle %d: %w", cycle, err)
	}
	for _, t := range created {
		l.publish(ctx, events.Event{
			Type: events.TaskCreated, RunID: p.RunID(), Cycle: cycle,
			Feature: t.Feature, TaskID: t.ID, Kind: string(t.Kind), Role: string(t.Role), Message: t.Description,
		})
	}

	// Read the todo set before any dispatch.
	todo := p.TasksWithStatus(project.StatusTodo)
	span.SetAttributes(attribute.Int("tasks.created", len(created)), attribute.Int("tasks.todo", len(todo)))
	l.report(Progress{
		Kind: ProgressCycle, RunID: p.RunID(), Cycle: cycle, MaxCycles: l.maxCycles,
		Message: fmt.Sprintf("cycle %d: %d tasks", cycle, len(todo)), Snapshot: p.Snapshot(),
	})

	if len(todo) == 0 {
		l.logger.Warn(ctx, "scheduler deadlock: no tasks to run",
			zap.Int("open_issues", p.Snapshot().OpenIssues()),
		)
		return OutcomeDeadlock, nil
	}

	l.logger.Debug(ctx, "cycle dispatch", zap.Int("tasks", len(todo)), zap.Int("created", len(created)))
	if err := l.dispatch(ctx, p, cycle, todo); err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := l.checkpoints.Save(ctx, p.RunID(), cycle, p.Snapshot()); err != nil {
		l.logger.Warn(ctx, "checkpoint save failed", zap.Error(err))
	}
	return "", nil
}

// dispatch runs the collected tasks. Tasks of one feature always run in
// collection order.
func (l *Loop) dispatch(ctx context.Context, p *project.Project, cycle int, todo []project.Task) error {
	if l.parallelism <= 1 {
		return l.runSequence(ctx, p, cycle, todo)
	}

	var order []string
	byFeature := make(map[string][]project.Task)
	for _, t := range todo {
		if _, ok := byFeature[t.Feature]; !ok {
			order = append(order, t.Feature)
		}
		byFeature[t.Feature] = append(byFeature[t.Feature], t)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for _, name := range order {
		tasks := byFeature[name]
		g.Go(func() error {
			return l.runSequence(gctx, p, cycle, tasks)
		})
	}
	return g.Wait()
}

func (l *Loop) runSequence(ctx context.Context, p *project.Project, cycle int, tasks []project.Task) error {
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.execute(ctx, p, cycle, t); err != nil {
			return err
		}
	}
	return nil
}

// execute marks one task in progress, hands it to its role and records the
// outcome.
func (l *Loop) execute(ctx context.Context, p *project.Project, cycle int, task project.Task) error {
	if err := p.SetTaskStatus(task.ID, project.StatusInProgress); err != nil {
		return fmt.Errorf("start task %s: %w", task.ID, err)
	}
	task.Status = project.StatusInProgress

	var (
		out worker.Outcome
		err error
	)
	w, lookupErr := l.workers.For(task.Role)
	if lookupErr != nil {
		out, err = l.failUnroutable(ctx, p, task, lookupErr)
	} else {
		out, err = worker.Perform(ctx, w, task, p, l.tracer)
	}
	if err != nil {
		return err
	}

	l.record(ctx, p, cycle, out)
	return nil
}

// failUnroutable fails a task whose role has no worker.
func (l *Loop) failUnroutable(ctx context.Context, p *project.Project, task project.Task, cause error) (worker.Outcome, error) {
	desc := fmt.Sprintf("%s failed on %s: %v", task.Role, task.Description, cause)
	l.logger.Warn(ctx, "task failed", zap.String("task.id", task.ID), zap.String("reason", desc))
	if err := p.SetTaskStatus(task.ID, project.StatusFailed); err != nil {
		return worker.Outcome{}, fmt.Errorf("mark task failed: %w", err)
	}
	issue, err := p.RaiseIssue(task.Feature, desc)
	if err != nil {
		return worker.Outcome{}, fmt.Errorf("raise failure issue: %w", err)
	}
	task.Status = project.StatusFailed
	return worker.Outcome{
		Task:   task,
		Role:   task.Role,
		Status: project.StatusFailed,
		Effect: worker.Effect{Issue: &issue},
		Err:    cause,
	}, nil
}

func (l *Loop) record(ctx context.Context, p *project.Project, cycle int, out worker.Outcome) {
	task := out.Task
	l.inst.task(ctx, string(task.Kind), string(out.Status))
	TaskDuration.WithLabelValues(string(out.Role)).Observe(out.Duration.Seconds())

	base := events.Event{
		RunID: p.RunID(), Cycle: cycle, Feature: task.Feature,
		TaskID: task.ID, Kind: string(task.Kind), Role: string(out.Role),
	}

	done := base
	done.Type = events.TaskCompleted
	done.Message = task.Description
	if out.Failed() {
		done.Type = events.TaskFailed
		if out.Err != nil {
			done.Message = out.Err.Error()
		}
	}
	l.publish(ctx, done)

	if out.Effect.Issue != nil {
		l.inst.issue(ctx)
		ev := base
		ev.Type = events.IssueRaised
		ev.Message = out.Effect.Issue.Description
		l.publish(ctx, ev)
	}
	if fix := out.Effect.Fix; fix != nil {
		ev := base
		ev.Type = events.TaskCreated
		ev.TaskID, ev.Kind, ev.Role, ev.Message = fix.ID, string(fix.Kind), string(fix.Role), fix.Description
		l.publish(ctx, ev)
	}

	msg := fmt.Sprintf("%s: %s", out.Role, task.Description)
	if out.Failed() {
		msg += " (failed)"
	} else if out.Effect.Verdict == worker.VerdictRejected {
		msg += " (rejected)"
	}
	l.report(Progress{
		Kind: ProgressTask, RunID: p.RunID(), Cycle: cycle, MaxCycles: l.maxCycles,
		Task: &task, Message: msg, Snapshot: p.Snapshot(),
	})
}

func (l *Loop) publish(ctx context.Context, e events.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if err := l.events.Publish(ctx, e); err != nil {
		l.logger.Warn(ctx, "event publish failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func (l *Loop) report(p Progress) {
	if l.progress == nil {
		return
	}
	l.progressMu.Lock()
	defer l.progressMu.Unlock()
	l.progress(p)
}
