package project

import "time"

// Snapshot is a deep, serializable copy of a project at one point in time.
type Snapshot struct {
	RunID        string               `json:"run_id"`
	Name         string               `json:"name"`
	Technologies []string             `json:"technologies,omitempty"`
	Features     []Feature            `json:"features"`
	Tasks        []Task               `json:"tasks"`
	Issues       []Issue              `json:"issues"`
	Artifacts    map[string]Artifacts `json:"artifacts"`
	Complete     bool                 `json:"complete"`
	TakenAt      time.Time            `json:"taken_at"`
}

// Snapshot captures the current state under a single read lock.
func (p *Project) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		RunID:        p.runID,
		Name:         p.name,
		Technologies: append([]string(nil), p.technologies...),
		Features:     make([]Feature, len(p.features)),
		Tasks:        make([]Task, len(p.tasks)),
		Issues:       append([]Issue(nil), p.issues...),
		Artifacts:    make(map[string]Artifacts, len(p.artifacts)),
		TakenAt:      p.now(),
	}
	for i, f := range p.features {
		s.Features[i] = f.clone()
	}
	for i, t := range p.tasks {
		s.Tasks[i] = *t
	}
	for name, a := range p.artifacts {
		s.Artifacts[name] = a.clone()
	}
	s.Complete = s.IsComplete()
	return s
}

// IsComplete evaluates the completion predicate over the snapshot.
func (s Snapshot) IsComplete() bool {
	for _, f := range s.Features {
		if !f.IsApproved {
			return false
		}
	}
	for _, i := range s.Issues {
		if !i.IsResolved {
			return false
		}
	}
	for _, t := range s.Tasks {
		if t.Status.Open() {
			return false
		}
	}
	return true
}

// Feature finds a feature by name.
func (s Snapshot) Feature(name string) (Feature, bool) {
	for _, f := range s.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// TasksFor returns the tasks owned by a feature, in order.
func (s Snapshot) TasksFor(feature string) []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.Feature == feature {
			out = append(out, t)
		}
	}
	return out
}

// OpenIssues counts unresolved issues.
func (s Snapshot) OpenIssues() int {
	n := 0
	for _, i := range s.Issues {
		if !i.IsResolved {
			n++
		}
	}
	return n
}
