// Package scheduler decides, once per cycle, which lifecycle task each feature needs next.
package scheduler

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
	"go.uber.org/zap"
)

// rule is one row of the lifecycle transition table.
type rule struct {
	kind     project.TaskKind
	role     project.Role
	describe func(feature string) string
	// applies reports whether the feature's flags call for this kind.
	applies func(f project.Feature) bool
}

// rules are evaluated in priority order; the first whose flag predicate holds
// is the only one considered for a feature in a cycle.
var rules = []rule{
	{
		kind:     project.KindDesign,
		role:     project.RoleDesigner,
		describe: func(name string) string { return "Create design for " + name },
		applies:  func(f project.Feature) bool { return !f.HasDesign },
	},
	{
		kind:     project.KindImplement,
		role:     project.RoleImplementer,
		describe: func(name string) string { return "Implement " + name },
		applies:  func(f project.Feature) bool { return f.HasDesign && !f.HasImplementation },
	},
	{
		kind:     project.KindTest,
		role:     project.RoleVerifier,
		describe: func(name string) string { return "Test " + name },
		applies:  func(f project.Feature) bool { return f.HasImplementation && !f.HasPassedTests },
	},
	{
		kind:     project.KindReview,
		role:     project.RoleApprover,
		describe: func(name string) string { return "Review " + name },
		applies:  func(f project.Feature) bool { return f.HasPassedTests && !f.IsApproved },
	},
}

// Scheduler creates at most one task per feature per cycle.
type Scheduler struct{}

// New returns a scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Schedule inspects every feature and appends the tasks it needs.
//
// A (feature, kind) pair gets at most one task for the life of the project:
// if any task of that kind already exists, whatever its status, nothing is
// created for the feature this cycle.
func (s *Scheduler) Schedule(ctx context.Context, p *project.Project) ([]project.Task, error) {
	logger := logging.FromContext(ctx)

	var created []project.Task
	for _, f := range p.Features() {
		r, ok := match(f)
		if !ok {
			continue
		}
		if p.HasTask(f.Name, r.kind) {
			continue
		}
		task, err := p.AddTask(f.Name, r.kind, r.role, r.describe(f.Name))
		if err != nil {
			return created, fmt.Errorf("schedule %s for %s: %w", r.kind, f.Name, err)
		}
		logger.Debug(ctx, "task scheduled",
			zap.String("feature", f.Name),
			zap.String("kind", string(task.Kind)),
			zap.String("role", string(task.Role)),
			zap.String("task_id", task.ID),
		)
		created = append(created, task)
	}
	return created, nil
}

// match returns the first rule whose predicate holds for f.
func match(f project.Feature) (rule, bool) {
	for _, r := range rules {
		if r.applies(f) {
			return r, true
		}
	}
	return rule{}, false
}

// RoleFor returns the role that owns a task kind.
func RoleFor(kind project.TaskKind) (project.Role, bool) {
	if kind == project.KindFix {
		return project.RoleImplementer, true
	}
	for _, r := range rules {
		if r.kind == kind {
			return r.role, true
		}
	}
	return "", false
}
