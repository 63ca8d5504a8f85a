package worker

import (
	"fmt"

	"github.com/fyrsmithlabs/owera/internal/extraction"
	"github.com/fyrsmithlabs/owera/internal/llm"
	"github.com/fyrsmithlabs/owera/internal/project"
)

// Deps configures every role in a Registry.
type Deps struct {
	Client llm.Client
	// Options apply to every model call.
	Options llm.Options
	// Engine defaults to NewEngine(extraction.Config{}).
	Engine *extraction.Engine
	// Classifier defaults to DefaultClassifier().
	Classifier Classifier
}

// Registry maps the closed set of roles to their workers.
type Registry struct {
	planner Planner
	byRole  map[project.Role]Worker
}

// NewRegistry builds one worker per role.
func NewRegistry(d Deps) (*Registry, error) {
	if d.Client == nil {
		return nil, fmt.Errorf("worker registry requires a model client")
	}
	if d.Engine == nil {
		d.Engine = extraction.NewEngine(extraction.Config{})
	}
	if d.Classifier == nil {
		d.Classifier = DefaultClassifier()
	}

	mk := func(r project.Role) base { return base{role: r, client: d.Client, opts: d.Options} }
	planner := Planner{mk(project.RolePlanner)}

	return &Registry{
		planner: planner,
		byRole: map[project.Role]Worker{
			project.RolePlanner:     planner,
			project.RoleDesigner:    Designer{base: mk(project.RoleDesigner), engine: d.Engine},
			project.RoleImplementer: Implementer{base: mk(project.RoleImplementer), engine: d.Engine},
			project.RoleVerifier:    Verifier{base: mk(project.RoleVerifier), classifier: d.Classifier},
			project.RoleApprover:    Approver{base: mk(project.RoleApprover), classifier: d.Classifier},
		},
	}, nil
}

// For returns the worker for role.
func (r *Registry) For(role project.Role) (Worker, error) {
	w, ok := r.byRole[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return w, nil
}

// Planner returns the ingestion role.
func (r *Registry) Planner() Planner {
	return r.planner
}
