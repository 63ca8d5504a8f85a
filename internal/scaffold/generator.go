package scaffold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/extraction"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
)

// ErrNoDir is returned when the generator has no output directory.
var ErrNoDir = errors.New("scaffold: output directory required")

// Config controls where and how the project is written.
type Config struct {
	Dir         string
	Git         bool
	AuthorName  string
	AuthorEmail string
	ScanSecrets bool
	Logger      *logging.Logger
}

// Input is everything a finished run hands to the generator.
type Input struct {
	Snapshot project.Snapshot
	// Retrospective is rendered Markdown; empty skips docs/retrospective.md.
	Retrospective string
}

// Report describes what Generate wrote.
type Report struct {
	Dir            string          `json:"dir"`
	Files          []string        `json:"files"`
	SecretFindings []SecretFinding `json:"secret_findings,omitempty"`
	Commit         string          `json:"commit,omitempty"`
}

// Generator renders snapshots into project directories.
type Generator struct {
	cfg     Config
	logger  *logging.Logger
	engine  *extraction.Engine
	scanner *Scanner
}

// NewGenerator validates cfg and loads the secret scanner when enabled.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Dir == "" {
		return nil, ErrNoDir
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "owera"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "owera@localhost"
	}
	g := &Generator{
		cfg:    cfg,
		logger: cfg.Logger,
		engine: extraction.NewEngine(extraction.Config{}),
	}
	if g.logger == nil {
		g.logger = logging.NewNop()
	}
	g.logger = g.logger.Named("scaffold")
	if cfg.ScanSecrets {
		s, err := NewScanner()
		if err != nil {
			return nil, err
		}
		g.scanner = s
	}
	return g, nil
}

// Dir returns the output directory.
func (g *Generator) Dir() string {
	return g.cfg.Dir
}

// Generate writes the project tree, scans it and commits it when git is
// enabled. Existing files with the same names are overwritten.
func (g *Generator) Generate(ctx context.Context, in Input) (*Report, error) {
	files, err := g.Files(in)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(g.cfg.Dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(files[name]), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	report := &Report{Dir: g.cfg.Dir, Files: names}
	g.logger.Info(ctx, "project written",
		zap.String("dir", g.cfg.Dir),
		zap.Int("files", len(names)))

	if g.scanner != nil {
		report.SecretFindings = g.scanner.Scan(files)
		for _, f := range report.SecretFindings {
			g.logger.Warn(ctx, "possible secret in generated file",
				zap.String("file", f.File),
				zap.Int("line", f.Line),
				zap.String("rule", f.RuleID))
		}
	}

	if g.cfg.Git {
		msg := fmt.Sprintf("Initial commit: %s generated by owera", in.Snapshot.Name)
		hash, err := Commit(g.cfg.Dir, msg, g.cfg.AuthorName, g.cfg.AuthorEmail)
		if err != nil {
			return report, err
		}
		report.Commit = hash
		g.logger.Info(ctx, "project committed", zap.String("commit", hash))
	}
	return report, nil
}

// Files renders the project tree without touching disk. Keys are
// slash-separated paths relative to the output directory.
func (g *Generator) Files(in Input) (map[string]string, error) {
	s := in.Snapshot
	app, err := render(appTemplate, newAppData(s))
	if err != nil {
		return nil, err
	}
	readme, err := render(readmeTemplate, newAppData(s))
	if err != nil {
		return nil, err
	}
	run, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	files := map[string]string{
		"src/app.py":       app,
		"requirements.txt": requirements,
		".gitignore":       gitignore,
		"README.md":        readme,
		"docs/design.md":   designDoc(s),
		"docs/issues.md":   issuesDoc(s),
		"logs/run.json":    string(run) + "\n",
	}
	if in.Retrospective != "" {
		files["docs/retrospective.md"] = in.Retrospective
	}
	for _, f := range s.Features {
		files["src/templates/"+extraction.TemplateName(f.Name)] = g.template(f, s.Artifacts[f.Name])
	}
	return files, nil
}

func (g *Generator) template(f project.Feature, a project.Artifacts) string {
	if looksLikeMarkup(a.Design) {
		return a.Design + "\n"
	}
	return g.engine.Placeholder(extraction.KindMarkup, extraction.Feature{
		Name:        f.Name,
		Description: f.Description,
		Constraints: f.Constraints,
	}) + "\n"
}
