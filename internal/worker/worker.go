package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/llm"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
)

// Errors.
var (
	ErrUnknownRole = errors.New("unknown role")
	ErrUnsupported = errors.New("task kind not handled by role")
)

// Worker is one lifecycle role.
type Worker interface {
	Role() project.Role
	// Handles reports whether the role owns tasks of kind.
	Handles(kind project.TaskKind) bool
	// BuildPrompt must not mutate anything.
	BuildPrompt(task project.Task, s project.Snapshot) string
	Call(ctx context.Context, prompt string) (string, error)
	// Apply is the only step allowed to mutate the project.
	Apply(ctx context.Context, result string, task project.Task, p *project.Project) (Effect, error)
}

// Extractor is implemented by roles whose output is an artifact rather
// than a verdict.
type Extractor interface {
	Extract(text string, f project.Feature) string
}

// Verdict is the classified answer of a Verifier or Approver.
type Verdict string

const (
	VerdictNone     Verdict = ""
	VerdictPassed   Verdict = "passed"
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// Effect describes what Apply changed beyond flags.
type Effect struct {
	Verdict Verdict
	Issue   *project.Issue
	Fix     *project.Task
}

// Outcome is the result of Perform.
type Outcome struct {
	Task     project.Task
	Role     project.Role
	Status   project.TaskStatus
	Response string
	Artifact string
	Effect   Effect
	// Err is the model or apply error that failed the task, if any.
	Err      error
	Duration time.Duration
}

// Failed reports whether the task ended failed.
func (o Outcome) Failed() bool { return o.Status == project.StatusFailed }

// Perform runs the worker contract for one task and records the result on p.
// Model errors fail the task and raise an Issue, unless ctx is done; they
// are not returned.
// The returned error is reserved for project bookkeeping failures.
func Perform(ctx context.Context, w Worker, task project.Task, p *project.Project, tracer trace.Tracer) (Outcome, error) {
	start := time.Now()
	role := w.Role()
	ctx = logging.WithFeature(logging.WithTaskID(ctx, task.ID), task.Feature)
	logger := logging.FromContext(ctx)

	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	ctx, span := tracer.Start(ctx, "worker."+strings.ToLower(string(role)), trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.kind", string(task.Kind)),
		attribute.String("feature", task.Feature),
	))
	defer span.End()

	out := Outcome{Task: task, Role: role}

	fail := func(cause error) (Outcome, error) {
		out.Err = cause
		out.Status = project.StatusFailed
		out.Duration = time.Since(start)
		desc := failureDescription(role, task, cause)
		logger.Warn(ctx, "task failed", zap.String("role", string(role)), zap.String("reason", desc))
		span.RecordError(cause)
		span.SetStatus(codes.Error, desc)
		if err := p.SetTaskStatus(task.ID, project.StatusFailed); err != nil {
			return out, fmt.Errorf("mark task failed: %w", err)
		}
		out.Task.Status = project.StatusFailed
		// Issues are permanent; a cancelled run says nothing about the feature.
		if ctx.Err() != nil {
			return out, nil
		}
		issue, err := p.RaiseIssue(task.Feature, desc)
		if err != nil {
			return out, fmt.Errorf("raise failure issue: %w", err)
		}
		out.Effect.Issue = &issue
		return out, nil
	}

	if !w.Handles(task.Kind) {
		return fail(fmt.Errorf("%w: %s cannot handle %s tasks", ErrUnsupported, role, task.Kind))
	}

	snap := p.Snapshot()
	feature, ok := snap.Feature(task.Feature)
	if !ok {
		return out, fmt.Errorf("%w: %s", project.ErrFeatureNotFound, task.Feature)
	}

	prompt := w.BuildPrompt(task, snap)
	logger.Info(ctx, "worker started", zap.String("role", string(role)), zap.String("task", task.Description))
	logger.Trace(ctx, "prompt", zap.String("role", string(role)), zap.String("prompt", prompt))

	response, err := w.Call(ctx, prompt)
	if err != nil {
		return fail(err)
	}
	out.Response = response
	logger.Trace(ctx, "response", zap.String("role", string(role)), zap.String("response", response))

	result := response
	if x, ok := w.(Extractor); ok {
		result = x.Extract(response, feature)
		out.Artifact = result
		logger.Trace(ctx, "artifact", zap.String("role", string(role)), zap.String("artifact", result))
	}

	effect, err := w.Apply(ctx, result, task, p)
	if err != nil {
		return fail(err)
	}
	out.Effect = effect

	if err := p.SetTaskStatus(task.ID, project.StatusDone); err != nil {
		return out, fmt.Errorf("mark task done: %w", err)
	}
	out.Status = project.StatusDone
	out.Task.Status = project.StatusDone
	out.Duration = time.Since(start)

	if effect.Verdict == VerdictRejected {
		logger.Info(ctx, "verdict rejected",
			zap.String("role", string(role)),
			zap.String("response", truncate(response, 200)),
		)
	} else {
		logger.Info(ctx, "worker finished", zap.String("role", string(role)), zap.String("task", task.Description))
	}
	return out, nil
}

// failureDescription renders the Issue text for a failed task.
func failureDescription(role project.Role, task project.Task, err error) string {
	if llm.IsTimeout(err) {
		return fmt.Sprintf("%s timed out on %s", role, task.Description)
	}
	return fmt.Sprintf("%s failed on %s: %v", role, task.Description, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
