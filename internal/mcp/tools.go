package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/owera/internal/checkpoint"
	"github.com/fyrsmithlabs/owera/internal/extraction"
	"github.com/fyrsmithlabs/owera/internal/project"
	"github.com/fyrsmithlabs/owera/internal/services"
	"github.com/fyrsmithlabs/owera/internal/spec"
)

func (s *Server) registerTools() {
	s.registerParseSpec()
	s.registerGenerateProject()
	s.registerExtractArtifact()
	s.registerRunStatus()
}

type featureOutput struct {
	Name        string   `json:"name" jsonschema:"Feature name"`
	Description string   `json:"description" jsonschema:"Feature description"`
	Constraints []string `json:"constraints,omitempty" jsonschema:"Constraints applied to the feature"`
}

type parseSpecInput struct {
	Spec string `json:"spec" jsonschema:"Free-text application description"`
}

type parseSpecOutput struct {
	Name         string          `json:"name" jsonschema:"Project name"`
	Technologies []string        `json:"technologies" jsonschema:"Target technologies"`
	Source       string          `json:"source" jsonschema:"Which ingestion step produced the result (model or manual)"`
	Features     []featureOutput `json:"features" jsonschema:"Features in delivery order"`
}

func (s *Server) registerParseSpec() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "parse_spec",
		Description: "Parse a free-text application description into a project name, technologies and features",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args parseSpecInput) (*mcp.CallToolResult, parseSpecOutput, error) {
		var toolErr error
		done := s.observe(ctx, "parse_spec")
		defer func() { done(toolErr) }()

		doc, source, err := s.reg.Parser().ParseDocument(ctx, args.Spec)
		if err != nil {
			toolErr = err
			return nil, parseSpecOutput{}, err
		}
		out := parseSpecOutput{
			Name:         doc.Name,
			Technologies: doc.Technologies,
			Source:       string(source),
		}
		if len(out.Technologies) == 0 {
			out.Technologies = spec.DefaultTechnologies()
		}
		for _, f := range doc.Features {
			out.Features = append(out.Features, featureOutput{Name: f.Name, Description: f.Description, Constraints: f.Constraints})
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Parsed %s with %d features", out.Name, len(out.Features))},
			},
		}, out, nil
	})
}

type generateProjectInput struct {
	Spec      string `json:"spec" jsonschema:"Free-text application description"`
	OutputDir string `json:"output_dir,omitempty" jsonschema:"Directory for the generated project (default: configured output dir)"`
	MaxCycles int    `json:"max_cycles,omitempty" jsonschema:"Cycle ceiling for the run (default: 100)"`
}

type generateProjectOutput struct {
	RunID          string   `json:"run_id" jsonschema:"Run identifier"`
	Outcome        string   `json:"outcome" jsonschema:"complete, deadlock, ceiling or cancelled"`
	Cycles         int      `json:"cycles" jsonschema:"Cycles executed"`
	OutputDir      string   `json:"output_dir" jsonschema:"Where the project was written"`
	Files          []string `json:"files" jsonschema:"Generated files relative to output_dir"`
	SecretFindings int      `json:"secret_findings" jsonschema:"Possible secrets detected in generated files"`
	Commit         string   `json:"commit,omitempty" jsonschema:"Git commit of the generated tree"`
	Retrospective  string   `json:"retrospective" jsonschema:"Markdown run summary"`
}

func (s *Server) registerGenerateProject() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_project",
		Description: "Run the full design, implement, test and review lifecycle for a description and write the generated project",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args generateProjectInput) (*mcp.CallToolResult, generateProjectOutput, error) {
		var toolErr error
		done := s.observe(ctx, "generate_project")
		defer func() { done(toolErr) }()

		p, err := s.reg.Parser().Parse(ctx, args.Spec)
		if err != nil {
			toolErr = err
			return nil, generateProjectOutput{}, err
		}
		exec, err := services.Execute(ctx, s.reg, p, services.Request{
			OutputDir: args.OutputDir,
			MaxCycles: args.MaxCycles,
		})
		if err != nil {
			toolErr = err
			return nil, generateProjectOutput{}, err
		}

		res := exec.Result
		out := generateProjectOutput{
			RunID:          res.Snapshot.RunID,
			Outcome:        string(res.Outcome),
			Cycles:         res.Cycles,
			OutputDir:      exec.Report.Dir,
			Files:          exec.Report.Files,
			SecretFindings: len(exec.Report.SecretFindings),
			Commit:         exec.Report.Commit,
			Retrospective:  res.Retrospective.Markdown(),
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Run %s finished %s after %d cycles; project written to %s",
					out.RunID, out.Outcome, out.Cycles, out.OutputDir)},
			},
		}, out, nil
	})
}

type extractArtifactInput struct {
	Text        string   `json:"text" jsonschema:"Raw model output"`
	Kind        string   `json:"kind" jsonschema:"markup or code"`
	FeatureName string   `json:"feature_name" jsonschema:"Feature the artifact belongs to"`
	Description string   `json:"description,omitempty" jsonschema:"Feature description used by the placeholder"`
	Constraints []string `json:"constraints,omitempty" jsonschema:"Feature constraints used by the placeholder"`
}

type extractArtifactOutput struct {
	Artifact string `json:"artifact" jsonschema:"Extracted artifact"`
	Source   string `json:"source" jsonschema:"Fallback step that produced the artifact"`
}

func (s *Server) registerExtractArtifact() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_artifact",
		Description: "Extract an HTML template or Flask route from unstructured model output, falling back to a placeholder",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args extractArtifactInput) (*mcp.CallToolResult, extractArtifactOutput, error) {
		var toolErr error
		done := s.observe(ctx, "extract_artifact")
		defer func() { done(toolErr) }()

		kind := extraction.Kind(strings.ToLower(strings.TrimSpace(args.Kind)))
		if !kind.Valid() {
			toolErr = fmt.Errorf("invalid kind %q: want markup or code", args.Kind)
			return nil, extractArtifactOutput{}, toolErr
		}
		artifact, source := s.engine.ExtractWithSource(args.Text, kind, extraction.Feature{
			Name:        args.FeatureName,
			Description: args.Description,
			Constraints: args.Constraints,
		})

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: artifact}},
		}, extractArtifactOutput{Artifact: artifact, Source: string(source)}, nil
	})
}

type runStatusInput struct {
	RunID string `json:"run_id" jsonschema:"Run identifier"`
}

type runStatusOutput struct {
	RunID      string         `json:"run_id" jsonschema:"Run identifier"`
	Name       string         `json:"name" jsonschema:"Project name"`
	Cycle      int            `json:"cycle" jsonschema:"Last checkpointed cycle"`
	Complete   bool           `json:"complete" jsonschema:"Whether the completion predicate held"`
	OpenIssues int            `json:"open_issues" jsonschema:"Unresolved issues"`
	Stages     map[string]int `json:"stages" jsonschema:"Features per lifecycle stage"`
}

func (s *Server) registerRunStatus() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_status",
		Description: "Report the latest checkpoint of a run",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args runStatusInput) (*mcp.CallToolResult, runStatusOutput, error) {
		var toolErr error
		done := s.observe(ctx, "run_status")
		defer func() { done(toolErr) }()

		cp, err := s.reg.Checkpoints().Latest(ctx, args.RunID)
		if errors.Is(err, checkpoint.ErrNotFound) {
			toolErr = fmt.Errorf("run %s not found", args.RunID)
			return nil, runStatusOutput{}, toolErr
		}
		if err != nil {
			toolErr = err
			return nil, runStatusOutput{}, err
		}

		out := runStatusOutput{
			RunID:      cp.RunID,
			Name:       cp.Snapshot.Name,
			Cycle:      cp.Cycle,
			Complete:   cp.Snapshot.Complete,
			OpenIssues: cp.Snapshot.OpenIssues(),
			Stages:     make(map[string]int),
		}
		for _, st := range project.AllStages() {
			out.Stages[string(st)] = 0
		}
		for _, f := range cp.Snapshot.Features {
			out.Stages[string(f.Stage())]++
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Run %s at cycle %d (complete: %t)", out.RunID, out.Cycle, out.Complete)},
			},
		}, out, nil
	})
}
