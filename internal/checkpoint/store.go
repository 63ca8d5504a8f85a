package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/owera/internal/project"
)

// ErrNotFound is returned when a run has no checkpoints.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is one saved snapshot.
type Checkpoint struct {
	RunID    string           `json:"run_id"`
	Cycle    int              `json:"cycle"`
	Snapshot project.Snapshot `json:"snapshot"`
	SavedAt  time.Time        `json:"saved_at"`
}

// Store persists checkpoints.
type Store interface {
	// Save writes the snapshot taken at the end of cycle.
	Save(ctx context.Context, runID string, cycle int, s project.Snapshot) error

	// Latest returns the highest-cycle checkpoint of a run.
	Latest(ctx context.Context, runID string) (*Checkpoint, error)

	// List returns every checkpoint of a run in cycle order.
	List(ctx context.Context, runID string) ([]*Checkpoint, error)

	// Runs returns the ids of every run with at least one checkpoint.
	Runs(ctx context.Context) ([]string, error)

	Close() error
}

// NoOp is a Store that keeps nothing.
type NoOp struct{}

var _ Store = NoOp{}

func (NoOp) Save(context.Context, string, int, project.Snapshot) error { return nil }

func (NoOp) Latest(context.Context, string) (*Checkpoint, error) { return nil, ErrNotFound }

func (NoOp) List(context.Context, string) ([]*Checkpoint, error) { return nil, nil }

func (NoOp) Runs(context.Context) ([]string, error) { return nil, nil }

func (NoOp) Close() error { return nil }
