package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/owera/internal/extraction"
	"github.com/fyrsmithlabs/owera/internal/llm"
	"github.com/fyrsmithlabs/owera/internal/project"
)

// base holds what every role shares: the model and its call options.
type base struct {
	role   project.Role
	client llm.Client
	opts   llm.Options
}

func (b base) Role() project.Role { return b.role }

func (b base) Call(ctx context.Context, prompt string) (string, error) {
	return b.client.Generate(ctx, prompt, b.opts)
}

func toExtraction(f project.Feature) extraction.Feature {
	return extraction.Feature{Name: f.Name, Description: f.Description, Constraints: f.Constraints}
}

func code(s project.Snapshot, feature string) string {
	return strings.Join(s.Artifacts[feature].Implementations, "\n")
}

func design(s project.Snapshot, feature string) string {
	return s.Artifacts[feature].Design
}

// Planner serves specification ingestion. It owns no lifecycle transition.
type Planner struct{ base }

func (Planner) Handles(project.TaskKind) bool { return false }

func (Planner) BuildPrompt(task project.Task, _ project.Snapshot) string {
	return PlanPrompt(task.Description)
}

func (Planner) Apply(_ context.Context, _ string, task project.Task, _ *project.Project) (Effect, error) {
	return Effect{}, fmt.Errorf("%w: Planner cannot handle %s tasks", ErrUnsupported, task.Kind)
}

// Plan asks the model to structure a free-text description.
func (p Planner) Plan(ctx context.Context, description string) (string, error) {
	return p.Call(ctx, PlanPrompt(description))
}

// Designer produces the markup template for a feature.
type Designer struct {
	base
	engine *extraction.Engine
}

func (Designer) Handles(kind project.TaskKind) bool { return kind == project.KindDesign }

func (Designer) BuildPrompt(task project.Task, s project.Snapshot) string {
	f, _ := s.Feature(task.Feature)
	return designPrompt(f)
}

func (d Designer) Extract(text string, f project.Feature) string {
	return d.engine.Extract(text, extraction.KindMarkup, toExtraction(f))
}

func (Designer) Apply(_ context.Context, result string, task project.Task, p *project.Project) (Effect, error) {
	return Effect{}, p.RecordDesign(task.Feature, result)
}

// Implementer writes code fragments and performs fixes.
type Implementer struct {
	base
	engine *extraction.Engine
}

func (Implementer) Handles(kind project.TaskKind) bool {
	return kind == project.KindImplement || kind == project.KindFix
}

func (Implementer) BuildPrompt(task project.Task, s project.Snapshot) string {
	f, _ := s.Feature(task.Feature)
	if task.Kind == project.KindFix {
		return fixPrompt(f, task, code(s, task.Feature))
	}
	return implementPrompt(f, s, design(s, task.Feature))
}

// Extract pulls code from the response and normalizes it for the
// generated app skeleton, which defines login_required without arguments
// and has no models module.
func (i Implementer) Extract(text string, f project.Feature) string {
	ef := toExtraction(f)
	cleaned := CleanCode(i.engine.Extract(text, extraction.KindCode, ef))
	if strings.TrimSpace(cleaned) == "" {
		return i.engine.Placeholder(extraction.KindCode, ef)
	}
	return cleaned
}

func (Implementer) Apply(_ context.Context, result string, task project.Task, p *project.Project) (Effect, error) {
	if task.Kind == project.KindFix {
		return Effect{}, p.ReplaceImplementation(task.Feature, result)
	}
	return Effect{}, p.AppendImplementation(task.Feature, result)
}

// CleanCode rewrites "@login_required()" to "@login_required" and drops
// "from models import" lines.
func CleanCode(code string) string {
	code = strings.ReplaceAll(code, "@login_required()", "@login_required")
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "from models import") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Verifier tests an implementation and either passes it or files a fix.
type Verifier struct {
	base
	classifier Classifier
}

func (Verifier) Handles(kind project.TaskKind) bool { return kind == project.KindTest }

func (Verifier) BuildPrompt(task project.Task, s project.Snapshot) string {
	f, _ := s.Feature(task.Feature)
	return verifyPrompt(f, code(s, task.Feature), design(s, task.Feature))
}

func (v Verifier) Apply(_ context.Context, result string, task project.Task, p *project.Project) (Effect, error) {
	if v.classifier.Passed(result) {
		return Effect{Verdict: VerdictPassed}, p.MarkTestsPassed(task.Feature)
	}
	return reject(result, task, p)
}

// Approver reviews a verified feature against its description.
type Approver struct {
	base
	classifier Classifier
}

func (Approver) Handles(kind project.TaskKind) bool { return kind == project.KindReview }

func (Approver) BuildPrompt(task project.Task, s project.Snapshot) string {
	f, _ := s.Feature(task.Feature)
	return approvePrompt(f, code(s, task.Feature), design(s, task.Feature))
}

func (a Approver) Apply(_ context.Context, result string, task project.Task, p *project.Project) (Effect, error) {
	if a.classifier.Approved(result) {
		return Effect{Verdict: VerdictApproved}, p.MarkApproved(task.Feature)
	}
	return reject(result, task, p)
}

// reject raises an Issue with the response and queues one fix task.
func reject(response string, task project.Task, p *project.Project) (Effect, error) {
	issue, err := p.RaiseIssue(task.Feature, response)
	if err != nil {
		return Effect{}, err
	}
	fix, err := p.AddTask(task.Feature, project.KindFix, project.RoleImplementer, "Fix: "+response)
	if err != nil {
		return Effect{Verdict: VerdictRejected, Issue: &issue}, err
	}
	return Effect{Verdict: VerdictRejected, Issue: &issue, Fix: &fix}, nil
}

var (
	_ Worker    = Planner{}
	_ Worker    = Designer{}
	_ Worker    = Implementer{}
	_ Worker    = Verifier{}
	_ Worker    = Approver{}
	_ Extractor = Designer{}
	_ Extractor = Implementer{}
)
