package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/owera/internal/project"
)

// Retrospective summarizes a finished run.
type Retrospective struct {
	Outcome    Outcome               `json:"outcome"`
	Cycles     int                   `json:"cycles"`
	Tasks      int                   `json:"tasks"`
	Done       int                   `json:"done"`
	Failed     int                   `json:"failed"`
	Open       int                   `json:"open"`
	Issues     int                   `json:"issues"`
	OpenIssues int                   `json:"open_issues"`
	Stages     map[project.Stage]int `json:"stages"`
	Features   []FeatureSummary      `json:"features"`
}

// FeatureSummary is one row of the retrospective.
type FeatureSummary struct {
	Name   string        `json:"name"`
	Stage  project.Stage `json:"stage"`
	Tasks  int           `json:"tasks"`
	Issues []string      `json:"issues,omitempty"`
}

// NewRetrospective computes the totals from the final snapshot.
func NewRetrospective(s project.Snapshot, cycles int, outcome Outcome) Retrospective {
	r := Retrospective{
		Outcome:    outcome,
		Cycles:     cycles,
		Tasks:      len(s.Tasks),
		Issues:     len(s.Issues),
		OpenIssues: s.OpenIssues(),
		Stages:     make(map[project.Stage]int, len(project.AllStages())),
	}
	for _, stage := range project.AllStages() {
		r.Stages[stage] = 0
	}

	for _, t := range s.Tasks {
		switch {
		case t.Status == project.StatusDone:
			r.Done++
		case t.Status == project.StatusFailed:
			r.Failed++
		case t.Status.Open():
			r.Open++
		}
	}

	for _, f := range s.Features {
		r.Stages[f.Stage()]++
		fs := FeatureSummary{Name: f.Name, Stage: f.Stage(), Tasks: len(s.TasksFor(f.Name))}
		for _, i := range f.Issues {
			fs.Issues = append(fs.Issues, i.Description)
		}
		r.Features = append(r.Features, fs)
	}
	return r
}

// Markdown renders the retrospective for docs/retrospective.md.
func (r Retrospective) Markdown() string {
	var b strings.Builder
	b.WriteString("# Retrospective\n\n")
	fmt.Fprintf(&b, "- Outcome: %s\n", r.Outcome)
	fmt.Fprintf(&b, "- Cycles: %d\n", r.Cycles)
	fmt.Fprintf(&b, "- Tasks: %d (%d done, %d failed, %d open)\n", r.Tasks, r.Done, r.Failed, r.Open)
	fmt.Fprintf(&b, "- Issues: %d (%d unresolved)\n", r.Issues, r.OpenIssues)

	b.WriteString("\n## Stages\n\n")
	for _, stage := range project.AllStages() {
		fmt.Fprintf(&b, "- %s: %d\n", stage, r.Stages[stage])
	}

	b.WriteString("\n## Features\n\n| Feature | Stage | Tasks | Issues |\n|---|---|---|---|\n")
	for _, f := range r.Features {
		fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", f.Name, f.Stage, f.Tasks, len(f.Issues))
	}

	for _, f := range r.Features {
		if len(f.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", f.Name)
		for _, i := range f.Issues {
			fmt.Fprintf(&b, "- %s\n", i)
		}
	}
	return b.String()
}
