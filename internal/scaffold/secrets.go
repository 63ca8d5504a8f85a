package scaffold

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// SecretFinding is a gitleaks hit in a generated file. The secret itself
// is never kept.
type SecretFinding struct {
	File   string `json:"file"`
	RuleID string `json:"rule_id"`
	Desc   string `json:"description"`
	Line   int    `json:"line"`
}

// Scanner checks generated content for leaked credentials.
type Scanner struct {
	detector *detect.Detector
}

// NewScanner loads the default gitleaks rule set.
func NewScanner() (*Scanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("load gitleaks rules: %w", err)
	}
	return &Scanner{detector: d}, nil
}

// Scan returns findings ordered by file and line.
func (s *Scanner) Scan(files map[string]string) []SecretFinding {
	var out []SecretFinding
	for name, content := range files {
		for _, f := range s.detector.DetectString(content) {
			out = append(out, SecretFinding{
				File:   name,
				RuleID: f.RuleID,
				Desc:   f.Description,
				Line:   f.StartLine,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}

func (f SecretFinding) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", f.File, f.Line, f.RuleID, strings.TrimSpace(f.Desc))
}
