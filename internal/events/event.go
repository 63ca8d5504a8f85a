// Package events publishes run lifecycle events over NATS.
//
// Subjects are <prefix>.runs.<runID>.<type>, so a consumer can follow one
// run with <prefix>.runs.<runID>.> or every run with <prefix>.runs.>.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	RunStarted    Type = "run.started"
	CycleStarted  Type = "cycle.started"
	TaskCreated   Type = "task.created"
	TaskCompleted Type = "task.completed"
	TaskFailed    Type = "task.failed"
	IssueRaised   Type = "issue.raised"
	RunFinished   Type = "run.finished"
)

// Event is one lifecycle notification. Fields irrelevant to Type are empty.
type Event struct {
	Type    Type      `json:"type"`
	RunID   string    `json:"run_id"`
	Cycle   int       `json:"cycle,omitempty"`
	Feature string    `json:"feature,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
	Kind    string    `json:"kind,omitempty"`
	Role    string    `json:"role,omitempty"`
	Message string    `json:"message,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Time    time.Time `json:"time"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Subject returns the NATS subject for an event of type t in run runID.
func Subject(prefix, runID string, t Type) string {
	return fmt.Sprintf("%s.runs.%s.%s", prefix, runID, t)
}

// RunWildcard matches every event of one run.
func RunWildcard(prefix, runID string) string {
	return fmt.Sprintf("%s.runs.%s.>", prefix, runID)
}

// TypeFromSubject recovers the event type from a subject built by Subject.
func TypeFromSubject(prefix, subject string) (Type, bool) {
	rest, ok := strings.CutPrefix(subject, prefix+".runs.")
	if !ok {
		return "", false
	}
	_, t, ok := strings.Cut(rest, ".")
	if !ok || t == "" {
		return "", false
	}
	return Type(t), true
}

// NoOp discards every event.
type NoOp struct{}

var _ Publisher = NoOp{}

func (NoOp) Publish(context.Context, Event) error { return nil }

func (NoOp) Close() error { return nil }

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
