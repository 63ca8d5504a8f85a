package project

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Project is the shared aggregate for a single run.
type Project struct {
	mu sync.RWMutex

	runID        string
	name         string
	technologies []string

	features  []*Feature
	index     map[string]*Feature
	tasks     []*Task
	issues    []Issue
	artifacts map[string]*Artifacts

	now func() time.Time
}

// New creates a project from an ingested feature set.
//
// Every feature needs a non-empty, unique name and a non-empty description.
// Flags and issues on the input are ignored; features start Planned.
func New(name string, technologies []string, features []Feature) (*Project, error) {
	if len(features) == 0 {
		return nil, ErrNoFeatures
	}

	p := &Project{
		runID:        uuid.New().String(),
		name:         name,
		technologies: append([]string(nil), technologies...),
		index:        make(map[string]*Feature, len(features)),
		artifacts:    make(map[string]*Artifacts, len(features)),
		now:          time.Now,
	}

	for _, f := range features {
		if strings.TrimSpace(f.Name) == "" {
			return nil, ErrEmptyFeatureName
		}
		if strings.TrimSpace(f.Description) == "" {
			return nil, fmt.Errorf("feature %q: %w", f.Name, ErrEmptyFeatureDescription)
		}
		if _, exists := p.index[f.Name]; exists {
			return nil, fmt.Errorf("feature %q: %w", f.Name, ErrDuplicateFeature)
		}
		feature := &Feature{
			Name:        f.Name,
			Description: f.Description,
			Constraints: append([]string(nil), f.Constraints...),
		}
		p.features = append(p.features, feature)
		p.index[f.Name] = feature
		p.artifacts[f.Name] = &Artifacts{}
	}

	return p, nil
}

// RunID returns the identifier of this run.
func (p *Project) RunID() string {
	return p.runID
}

// Name returns the project name.
func (p *Project) Name() string {
	return p.name
}

// Technologies returns a copy of the technology list.
func (p *Project) Technologies() []string {
	return append([]string(nil), p.technologies...)
}

// Features returns copies of all features in insertion order.
func (p *Project) Features() []Feature {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Feature, len(p.features))
	for i, f := range p.features {
		out[i] = f.clone()
	}
	return out
}

// Feature returns a copy of the named feature.
func (p *Project) Feature(name string) (Feature, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	f, ok := p.index[name]
	if !ok {
		return Feature{}, false
	}
	return f.clone(), true
}

// Artifacts returns a copy of the named feature's artifacts.
func (p *Project) Artifacts(name string) Artifacts {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if a, ok := p.artifacts[name]; ok {
		return a.clone()
	}
	return Artifacts{}
}

// Tasks returns copies of all tasks in insertion order.
func (p *Project) Tasks() []Task {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Task, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = *t
	}
	return out
}

// Task returns a copy of the task with the given id.
func (p *Project) Task(id string) (Task, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, t := range p.tasks {
		if t.ID == id {
			return *t, true
		}
	}
	return Task{}, false
}

// TasksWithStatus returns copies of tasks with the given status, in order.
func (p *Project) TasksWithStatus(status TaskStatus) []Task {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Task
	for _, t := range p.tasks {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	return out
}

// Issues returns copies of all issues in insertion order.
func (p *Project) Issues() []Issue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Issue(nil), p.issues...)
}

// HasTask reports whether any task of kind exists for feature, whatever its status.
func (p *Project) HasTask(feature string, kind TaskKind) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasTaskLocked(feature, kind)
}

func (p *Project) hasTaskLocked(feature string, kind TaskKind) bool {
	for _, t := range p.tasks {
		if t.Feature == feature && t.Kind == kind {
			return true
		}
	}
	return false
}

// AddTask appends a todo task and returns a copy of it.
func (p *Project) AddTask(feature string, kind TaskKind, role Role, description string) (Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[feature]; !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrFeatureNotFound, feature)
	}

	now := p.now()
	t := &Task{
		ID:          uuid.New().String(),
		Kind:        kind,
		Feature:     feature,
		Description: description,
		Status:      StatusTodo,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.tasks = append(p.tasks, t)
	return *t, nil
}

// SetTaskStatus updates the status of a task.
func (p *Project) SetTaskStatus(id string, status TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.tasks {
		if t.ID == id {
			t.Status = status
			t.UpdatedAt = p.now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// RaiseIssue appends an unresolved issue to the project and to the feature.
func (p *Project) RaiseIssue(feature, description string) (Issue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.index[feature]
	if !ok {
		return Issue{}, fmt.Errorf("%w: %s", ErrFeatureNotFound, feature)
	}

	issue := Issue{
		ID:          uuid.New().String(),
		Feature:     feature,
		Description: description,
		CreatedAt:   p.now(),
	}
	p.issues = append(p.issues, issue)
	f.Issues = append(f.Issues, issue)
	return issue, nil
}

// RecordDesign stores the design artifact and marks the feature designed.
func (p *Project) RecordDesign(feature, design string) error {
	return p.mutate(feature, func(f *Feature, a *Artifacts) {
		a.Design = design
		f.HasDesign = true
	})
}

// AppendImplementation adds a fragment and marks the feature implemented.
func (p *Project) AppendImplementation(feature, fragment string) error {
	return p.mutate(feature, func(f *Feature, a *Artifacts) {
		a.Implementations = append(a.Implementations, fragment)
		f.HasImplementation = true
	})
}

// ReplaceImplementation swaps every fragment for a single new one.
// No flag changes.
func (p *Project) ReplaceImplementation(feature, fragment string) error {
	return p.mutate(feature, func(_ *Feature, a *Artifacts) {
		a.Implementations = []string{fragment}
	})
}

// MarkTestsPassed sets has_passed_tests.
func (p *Project) MarkTestsPassed(feature string) error {
	return p.mutate(feature, func(f *Feature, _ *Artifacts) {
		f.HasPassedTests = true
	})
}

// MarkApproved sets is_approved.
func (p *Project) MarkApproved(feature string) error {
	return p.mutate(feature, func(f *Feature, _ *Artifacts) {
		f.IsApproved = true
	})
}

func (p *Project) mutate(feature string, fn func(*Feature, *Artifacts)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.index[feature]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, feature)
	}
	fn(f, p.artifacts[feature])
	return nil
}

// IsComplete evaluates the completion predicate.
func (p *Project) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, f := range p.features {
		if !f.IsApproved {
			return false
		}
	}
	for _, i := range p.issues {
		if !i.IsResolved {
			return false
		}
	}
	for _, t := range p.tasks {
		if t.Status.Open() {
			return false
		}
	}
	return true
}
