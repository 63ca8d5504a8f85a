package services

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/orchestrator"
	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/fyrsmithlabs/owera/internal/scaffold"
)

// Request overrides the registry defaults for one execution.
type Request struct {
	// OutputDir replaces Defaults.Output.Dir when set.
	OutputDir string
	// PerRunDir writes into <dir>/<run id>.
	PerRunDir   bool
	MaxCycles   int
	Parallelism int
	Progress    orchestrator.ProgressFunc
	// Publish pushes the result to GitHub when a publisher is configured.
	Publish bool
}

// Execution is the outcome of one run plus what was written.
type Execution struct {
	Result  *orchestrator.Result
	Report  *scaffold.Report
	RepoURL string
}

// Execute runs p to a terminal outcome and scaffolds the snapshot. The
// scaffold runs for every outcome, including cancellation; the run error
// is returned alongside the Execution.
func Execute(ctx context.Context, r Registry, p *project.Project, req Request) (*Execution, error) {
	d := r.Defaults()
	maxCycles := d.MaxCycles
	if req.MaxCycles > 0 {
		maxCycles = req.MaxCycles
	}
	parallelism := d.Parallelism
	if req.Parallelism > 0 {
		parallelism = req.Parallelism
	}

	loop, err := orchestrator.New(orchestrator.Options{
		Logger:      r.Logger(),
		Workers:     r.Workers(),
		MaxCycles:   maxCycles,
		Parallelism: parallelism,
		Progress:    req.Progress,
		Checkpoints: r.Checkpoints(),
		Events:      r.Events(),
		Tracer:      r.Tracer(),
		Meter:       r.Meter(),
	})
	if err != nil {
		return nil, err
	}

	res, runErr := loop.Run(ctx, p)
	if res == nil {
		return nil, runErr
	}
	exec := &Execution{Result: res}

	out := d.Output
	out.Logger = r.Logger()
	if req.OutputDir != "" {
		out.Dir = req.OutputDir
	}
	if req.PerRunDir {
		out.Dir = filepath.Join(out.Dir, res.Snapshot.RunID)
	}
	gen, err := scaffold.NewGenerator(out)
	if err != nil {
		return exec, fmt.Errorf("scaffold: %w", err)
	}

	// Output is written even when ctx was cancelled.
	sctx := context.WithoutCancel(ctx)
	exec.Report, err = gen.Generate(sctx, scaffold.Input{
		Snapshot:      res.Snapshot,
		Retrospective: res.Retrospective.Markdown(),
	})
	if err != nil {
		return exec, fmt.Errorf("scaffold: %w", err)
	}

	if req.Publish && r.Publisher() != nil && runErr == nil {
		opts := d.Publish
		if opts.Name == "" {
			opts.Name = res.Snapshot.Name
		}
		if opts.Description == "" {
			opts.Description = "Generated by owera"
		}
		exec.RepoURL, err = r.Publisher().Publish(ctx, exec.Report.Dir, opts)
		if err != nil {
			return exec, fmt.Errorf("publish: %w", err)
		}
	}

	r.Logger().Info(ctx, "execution finished",
		zap.String("run.id", res.Snapshot.RunID),
		zap.String("outcome", string(res.Outcome)),
		zap.String("dir", exec.Report.Dir),
		zap.Int("secret_findings", len(exec.Report.SecretFindings)))
	return exec, runErr
}
