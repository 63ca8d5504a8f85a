package project

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrNoFeatures              = errors.New("project requires at least one feature")
	ErrEmptyFeatureName        = errors.New("feature name cannot be empty")
	ErrEmptyFeatureDescription = errors.New("feature description cannot be empty")
	ErrDuplicateFeature        = errors.New("duplicate feature name")
	ErrFeatureNotFound         = errors.New("feature not found")
	ErrTaskNotFound            = errors.New("task not found")
	ErrInvalidStatus           = errors.New("invalid task status")
)

// TaskKind is the kind of work a task represents.
type TaskKind string

const (
	KindDesign    TaskKind = "design"
	KindImplement TaskKind = "implement"
	KindTest      TaskKind = "test"
	KindReview    TaskKind = "review"
	KindFix       TaskKind = "fix"
)

// TaskStatus is the mutable status of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusFailed     TaskStatus = "failed"
)

// Valid reports whether s is one of the four known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Open reports whether the task still counts as pending work.
func (s TaskStatus) Open() bool {
	return s == StatusTodo || s == StatusInProgress
}

// Role names the worker a task is assigned to.
type Role string

const (
	RolePlanner     Role = "Planner"
	RoleDesigner    Role = "Designer"
	RoleImplementer Role = "Implementer"
	RoleVerifier    Role = "Verifier"
	RoleApprover    Role = "Approver"
)

// AllRoles returns the closed set of roles in lifecycle order.
func AllRoles() []Role {
	return []Role{RolePlanner, RoleDesigner, RoleImplementer, RoleVerifier, RoleApprover}
}

// Stage is the lifecycle position derived from a feature's flags.
type Stage string

const (
	StagePlanned     Stage = "planned"
	StageDesigned    Stage = "designed"
	StageImplemented Stage = "implemented"
	StageVerified    Stage = "verified"
	StageApproved    Stage = "approved"
)

// AllStages returns stages in lifecycle order.
func AllStages() []Stage {
	return []Stage{StagePlanned, StageDesigned, StageImplemented, StageVerified, StageApproved}
}

// Feature is a unit of functionality carried through the lifecycle.
type Feature struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Constraints []string `json:"constraints,omitempty"`

	HasDesign         bool `json:"has_design"`
	HasImplementation bool `json:"has_implementation"`
	HasPassedTests    bool `json:"has_passed_tests"`
	IsApproved        bool `json:"is_approved"`

	// Issues raised against this feature, in order.
	Issues []Issue `json:"issues,omitempty"`
}

// Stage derives the lifecycle stage from the flags.
func (f Feature) Stage() Stage {
	switch {
	case f.IsApproved:
		return StageApproved
	case f.HasPassedTests:
		return StageVerified
	case f.HasImplementation:
		return StageImplemented
	case f.HasDesign:
		return StageDesigned
	default:
		return StagePlanned
	}
}

// Task is one scheduled unit of work tied to one feature and one role.
type Task struct {
	ID          string     `json:"id"`
	Kind        TaskKind   `json:"kind"`
	Feature     string     `json:"feature"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Role        Role       `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Issue records a rejection or a failed model call.
type Issue struct {
	ID          string     `json:"id"`
	Feature     string     `json:"feature"`
	Description string     `json:"description"`
	IsResolved  bool       `json:"is_resolved"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Artifacts holds the latest outputs produced for a feature.
type Artifacts struct {
	Design          string   `json:"design,omitempty"`
	Implementations []string `json:"implementations,omitempty"`
}

func (f Feature) clone() Feature {
	out := f
	out.Constraints = append([]string(nil), f.Constraints...)
	out.Issues = append([]Issue(nil), f.Issues...)
	return out
}

func (a Artifacts) clone() Artifacts {
	return Artifacts{
		Design:          a.Design,
		Implementations: append([]string(nil), a.Implementations...),
	}
}
