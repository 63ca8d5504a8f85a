package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/project"
)

// Source records which ingestion step produced a Document.
type Source string

const (
	SourceModel  Source = "model"
	SourceManual Source = "manual"
	SourceFile   Source = "file"
)

// Planner structures a free-text description. worker.Planner satisfies it.
type Planner interface {
	Plan(ctx context.Context, description string) (string, error)
}

// Parser ingests specifications.
type Parser struct {
	planner Planner
	logger  *logging.Logger
}

// NewParser creates a parser. A nil planner skips the model step.
func NewParser(planner Planner, logger *logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Parser{planner: planner, logger: logger.Named("spec")}
}

// Parse ingests free text and builds the project.
func (p *Parser) Parse(ctx context.Context, text string) (*project.Project, error) {
	doc, _, err := p.ParseDocument(ctx, text)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}

// ParseDocument ingests free text. The model answer is used when it
// decodes and validates; otherwise the heuristic parser runs.
func (p *Parser) ParseDocument(ctx context.Context, text string) (*Document, Source, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrEmptySpec
	}

	if p.planner != nil {
		doc, err := p.fromModel(ctx, text)
		if err == nil {
			p.logger.Info(ctx, "specification parsed", zap.String("source", string(SourceModel)), zap.Int("features", len(doc.Features)))
			return doc, SourceModel, nil
		}
		p.logger.Warn(ctx, "model parsing failed, falling back to manual parsing", zap.Error(err))
	}

	doc := ManualParse(text)
	p.logger.Info(ctx, "specification parsed", zap.String("source", string(SourceManual)), zap.Int("features", len(doc.Features)))
	return &doc, SourceManual, nil
}

func (p *Parser) fromModel(ctx context.Context, text string) (*Document, error) {
	resp, err := p.planner.Plan(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	p.logger.Trace(ctx, "plan response", zap.String("response", resp))

	raw, ok := firstObject(resp)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in model response", ErrInvalidSpec)
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: decode model JSON: %v", ErrInvalidSpec, err)
	}
	doc = doc.withDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads a structured file, or treats any other file as free text.
func (p *Parser) ParseFile(ctx context.Context, path string) (*project.Project, error) {
	doc, err := LoadFile(path)
	if errors.Is(err, ErrUnstructured) {
		text, rerr := readText(path)
		if rerr != nil {
			return nil, rerr
		}
		return p.Parse(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "specification loaded", zap.String("path", path), zap.Int("features", len(doc.Features)))
	return doc.Build()
}

// ParseFileOverlay loads the structured file at path and merges the
// features ingested from text on top of it. Defaults the text parse fell
// back to are not merged.
func (p *Parser) ParseFileOverlay(ctx context.Context, path, text string) (*project.Project, error) {
	base, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	overlay, _, err := p.ParseDocument(ctx, text)
	if err != nil {
		return nil, err
	}
	merged := Merge(*base, withoutDefaults(*overlay))
	p.logger.Info(ctx, "specification merged",
		zap.String("path", path),
		zap.Int("base_features", len(base.Features)),
		zap.Int("features", len(merged.Features)))
	return merged.Build()
}

// withoutDefaults clears the name, stack and feature the heuristic parser
// substitutes when the text names none.
func withoutDefaults(d Document) Document {
	if d.Name == DefaultName {
		d.Name = ""
	}
	if slices.Equal(d.Technologies, DefaultTechnologies()) {
		d.Technologies = nil
	}
	if len(d.Features) == 1 && d.Features[0].Name == DefaultFeatureName && d.Features[0].Description == DefaultFeatureDescription {
		d.Features = nil
	}
	return d
}

// firstObject returns the first balanced {...} in s, honoring JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
