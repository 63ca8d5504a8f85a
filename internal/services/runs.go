package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/orchestrator"
	"github.com/fyrsmithlabs/owera/internal/project"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// ErrClosed is returned when submitting to a closed Runs.
var ErrClosed = errors.New("runs: closed")

// Status is where a background run is.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// RunInfo is the externally visible state of a run.
type RunInfo struct {
	ID         string               `json:"run_id"`
	Name       string               `json:"name"`
	Status     Status               `json:"status"`
	Outcome    orchestrator.Outcome `json:"outcome,omitempty"`
	Cycle      int                  `json:"cycle"`
	Error      string               `json:"error,omitempty"`
	OutputDir  string               `json:"output_dir,omitempty"`
	RepoURL    string               `json:"repo_url,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Snapshot   project.Snapshot     `json:"snapshot"`
}

type run struct {
	info RunInfo
	done chan struct{}
}

// Runs executes projects in the background and tracks their state.
type Runs struct {
	reg    Registry
	req    Request
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	runs   map[string]*run
	closed bool
	wg     sync.WaitGroup
}

// NewRuns creates a tracker. Every run uses req; runs are cancelled by
// Shutdown, not by the submitting caller.
func NewRuns(reg Registry, req Request) *Runs {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runs{reg: reg, req: req, ctx: ctx, cancel: cancel, runs: make(map[string]*run)}
}

// Submit starts p in the background and returns its run id.
func (r *Runs) Submit(p *project.Project) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}

	id := p.RunID()
	entry := &run{
		info: RunInfo{
			ID:        id,
			Name:      p.Name(),
			Status:    StatusRunning,
			StartedAt: time.Now().UTC(),
			Snapshot:  p.Snapshot(),
		},
		done: make(chan struct{}),
	}
	r.runs[id] = entry

	req := r.req
	user := req.Progress
	req.Progress = func(pr orchestrator.Progress) {
		r.update(id, func(info *RunInfo) {
			info.Cycle = pr.Cycle
			info.Snapshot = pr.Snapshot
		})
		if user != nil {
			user(pr)
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(entry.done)
		exec, err := Execute(r.ctx, r.reg, p, req)
		r.finish(id, exec, err)
	}()
	return id, nil
}

func (r *Runs) update(id string, fn func(*RunInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.runs[id]; ok {
		fn(&e.info)
	}
}

func (r *Runs) finish(id string, exec *Execution, err error) {
	now := time.Now().UTC()
	r.update(id, func(info *RunInfo) {
		info.FinishedAt = &now
		info.Status = StatusFinished
		if exec != nil {
			info.Outcome = exec.Result.Outcome
			info.Cycle = exec.Result.Cycles
			info.Snapshot = exec.Result.Snapshot
			info.RepoURL = exec.RepoURL
			if exec.Report != nil {
				info.OutputDir = exec.Report.Dir
			}
		}
		if err != nil {
			info.Status = StatusFailed
			info.Error = err.Error()
		}
	})
	if err != nil {
		r.reg.Logger().Warn(r.ctx, "background run failed", zap.String("run.id", id), zap.Error(err))
	}
}

// Get returns a copy of a run's state.
func (r *Runs) Get(id string) (RunInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return RunInfo{}, ErrRunNotFound
	}
	return e.info, nil
}

// List returns every tracked run, most recent first.
func (r *Runs) List() []RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RunInfo, 0, len(r.runs))
	for _, e := range r.runs {
		out = append(out, e.info)
	}
	sortByStart(out)
	return out
}

// Done returns a channel closed when the run stops.
func (r *Runs) Done(id string) (<-chan struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return e.done, nil
}

// Wait blocks until the run stops or ctx is done.
func (r *Runs) Wait(ctx context.Context, id string) (RunInfo, error) {
	done, err := r.Done(id)
	if err != nil {
		return RunInfo{}, err
	}
	select {
	case <-done:
		return r.Get(id)
	case <-ctx.Done():
		return RunInfo{}, ctx.Err()
	}
}

// Shutdown cancels every running run and waits for them, bounded by ctx.
func (r *Runs) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sortByStart(runs []RunInfo) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}
