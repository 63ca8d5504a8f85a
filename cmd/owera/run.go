package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/monitor"
	"github.com/fyrsmithlabs/owera/internal/orchestrator"
	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/fyrsmithlabs/owera/internal/services"
	"github.com/fyrsmithlabs/owera/internal/spec"
)

// runFlags are the per-run overrides.
type runFlags struct {
	file      string
	out       string
	maxCycles int
	parallel  int
	tui       bool
	publish   bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [description]",
		Short: "Generate a project from a description",
		Long: `Parse the description into features, run the lifecycle loop until every
feature is approved or the loop stops, then write the project.

Examples:
  # Offline, with the scripted model
  owera run --offline "A recipe app with search"

  # From a YAML, JSON or TOML file, with the dashboard
  owera run --file app.yaml --tui --out ./recipes

  # Add features to a file from a description
  owera run --file app.yaml "and a favorites page to save recipes"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, g, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the description from a file")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (default output.dir)")
	cmd.Flags().IntVar(&f.maxCycles, "max-cycles", 0, "cycle ceiling (default orchestrator.max_cycles)")
	cmd.Flags().IntVar(&f.parallel, "parallel", 0, "features dispatched concurrently (default orchestrator.parallelism)")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show the live dashboard")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "push the result to GitHub (requires publish.enabled)")
	return cmd
}

func runGenerate(cmd *cobra.Command, g *globalFlags, f *runFlags, args []string) error {
	ctx := cmd.Context()

	opts := appOptions{configPath: g.configPath, offline: g.offline}
	if f.tui {
		opts.sink = sinkFile
		opts.logFile = filepath.Join(os.TempDir(), "owera.log")
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	p, err := loadProject(ctx, a.registry.Parser(), f.file, args)
	if err != nil {
		return err
	}

	req := services.Request{
		OutputDir:   f.out,
		MaxCycles:   f.maxCycles,
		Parallelism: f.parallel,
		Publish:     f.publish,
	}

	var exec *services.Execution
	if f.tui {
		exec, err = runWithDashboard(ctx, a, p, req, cmd.OutOrStdout())
	} else {
		req.Progress = logProgress(ctx, a.logger)
		exec, err = services.Execute(ctx, a.registry, p, req)
	}
	if exec != nil {
		printSummary(cmd.OutOrStdout(), exec)
	}
	return err
}

// loadProject reads the description from --file, the joined arguments, or
// both: a description given with a structured file is merged on top of it.
func loadProject(ctx context.Context, parser *spec.Parser, file string, args []string) (*project.Project, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	switch {
	case file != "" && text != "":
		return parser.ParseFileOverlay(ctx, file, text)
	case file != "":
		return parser.ParseFile(ctx, file)
	case text == "":
		return nil, spec.ErrEmptySpec
	}
	return parser.Parse(ctx, text)
}

// logProgress logs cycle and task progress when no dashboard is shown.
func logProgress(ctx context.Context, logger *logging.Logger) orchestrator.ProgressFunc {
	return func(p orchestrator.Progress) {
		done, total := p.Steps()
		switch p.Kind {
		case orchestrator.ProgressCycle:
			logger.Info(ctx, "cycle started",
				zap.Int("cycle", p.Cycle),
				zap.Int("steps_done", done),
				zap.Int("steps_total", total),
				zap.Int("open_issues", p.Snapshot.OpenIssues()))
		case orchestrator.ProgressTask:
			logger.Debug(ctx, "task finished", zap.String("message", p.Message))
		}
	}
}

type execResult struct {
	exec *services.Execution
	err  error
}

// runWithDashboard runs the execution in the background and shows the
// dashboard until the user quits. Quitting cancels a run still in progress.
func runWithDashboard(ctx context.Context, a *app, p *project.Project, req services.Request, out io.Writer) (*services.Execution, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := monitor.NewFeed()
	req.Progress = feed.Send

	done := make(chan execResult, 1)
	go func() {
		exec, err := services.Execute(runCtx, a.registry, p, req)
		feed.Close()
		done <- execResult{exec, err}
	}()

	model := monitor.NewModel(p.Name(), feed.Updates(), monitor.WithQuit(cancel))
	_, uiErr := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(out)).Run()
	if errors.Is(uiErr, tea.ErrProgramKilled) {
		uiErr = nil
	}
	if uiErr != nil {
		cancel()
	}
	feed.Stop()

	r := <-done
	return r.exec, errors.Join(r.err, uiErr)
}

// summary is what run prints when it finishes.
type summary struct {
	RunID    string   `json:"run_id"`
	Outcome  string   `json:"outcome"`
	Cycles   int      `json:"cycles"`
	Dir      string   `json:"dir,omitempty"`
	Commit   string   `json:"commit,omitempty"`
	Secrets  int      `json:"secret_findings,omitempty"`
	RepoURL  string   `json:"repo_url,omitempty"`
	Features []string `json:"features"`
}

func printSummary(w io.Writer, exec *services.Execution) {
	res := exec.Result
	s := summary{
		RunID:   res.Snapshot.RunID,
		Outcome: string(res.Outcome),
		Cycles:  res.Cycles,
		RepoURL: exec.RepoURL,
	}
	if exec.Report != nil {
		s.Dir = exec.Report.Dir
		s.Commit = exec.Report.Commit
		s.Secrets = len(exec.Report.SecretFindings)
	}
	for _, f := range res.Snapshot.Features {
		s.Features = append(s.Features, fmt.Sprintf("%s: %s", f.Name, f.Stage()))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(s)
}

func newParseCmd(g *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "parse [description]",
		Short: "Print the features parsed from a description as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{configPath: g.configPath, offline: g.offline, sink: sinkStderr})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			p, err := loadProject(ctx, a.registry.Parser(), file, args)
			if err != nil {
				return err
			}
			snap := p.Snapshot()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(spec.Document{
				Name:         snap.Name,
				Technologies: snap.Technologies,
				Features:     featureDocuments(snap.Features),
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the description from a file")
	return cmd
}

func featureDocuments(features []project.Feature) []spec.FeatureDocument {
	docs := make([]spec.FeatureDocument, 0, len(features))
	for _, f := range features {
		docs = append(docs, spec.FeatureDocument{
			Name:        f.Name,
			Description: f.Description,
			Constraints: f.Constraints,
		})
	}
	return docs
}
