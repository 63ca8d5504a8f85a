package worker

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/owera/internal/extraction"
	"github.com/fyrsmithlabs/owera/internal/project"
)

// Prompt markers. Each appears verbatim in exactly one role's prompt, so
// scripted clients can route on them.
const (
	MarkerPlan      = "Parse this app description into JSON"
	MarkerDesign    = "Provide only the HTML template"
	MarkerImplement = "Provide only the Python code for a Flask route"
	MarkerFix       = "Fix the issue in the Flask route"
	MarkerVerify    = "Provide only a brief result: 'No issues' or list specific issues."
	MarkerApprove   = "Provide only 'Approve' or list specific discrepancies."
)

const (
	defaultDesignConstraints = "responsive, modern design"
	defaultCodeConstraints   = "clean, modular code"
	defaultBackend           = "Python/Flask"
)

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

func backend(technologies []string) string {
	for _, t := range technologies {
		lower := strings.ToLower(t)
		if strings.Contains(lower, "python") || strings.Contains(lower, "flask") {
			return t
		}
	}
	return defaultBackend
}

// PlanPrompt asks the model to turn a free-text app description into JSON.
func PlanPrompt(description string) string {
	return MarkerPlan + " with this structure: " +
		`{"name": "AppName", "technologies": ["Python/Flask", "HTML/CSS"], ` +
		`"features": [{"name": "feature name", "description": "what it does", "constraints": ["constraint"]}]}. ` +
		"Default to Python/Flask and HTML/CSS if unspecified. Return only valid JSON with a non-empty features list. " +
		"If the description is unclear, include at least one feature such as a home page. " +
		"Description: " + description
}

func designPrompt(f project.Feature) string {
	return fmt.Sprintf("You are a UI/UX designer. %s for '%s' using Tailwind CSS via CDN, "+
		"with forms where the feature needs input and a responsive layout. "+
		"Do not include explanations or comments, just the raw HTML. "+
		"Description: %s. Constraints: %s.",
		MarkerDesign, f.Name, f.Description, joinOr(f.Constraints, defaultDesignConstraints))
}

func implementPrompt(f project.Feature, s project.Snapshot, design string) string {
	return fmt.Sprintf("%s to implement '%s' in %s. "+
		"Do not include explanations, comments, or imports (assume Flask, render_template, request, redirect, "+
		"url_for, session, jsonify, SQLAlchemy, and db are imported). "+
		"Render the template '%s'. Description: %s. Design: %s. Constraints: %s. "+
		"Include necessary logic (e.g., database queries, authentication) if the description calls for it.",
		MarkerImplement, f.Name, backend(s.Technologies), extraction.TemplateName(f.Name),
		f.Description, design, joinOr(f.Constraints, defaultCodeConstraints))
}

func fixPrompt(f project.Feature, task project.Task, code string) string {
	return fmt.Sprintf("%s for '%s': %s. Current code: %s. "+
		"Provide only the corrected Python code without explanations or comments.",
		MarkerFix, f.Name, task.Description, code)
}

func verifyPrompt(f project.Feature, code, design string) string {
	return fmt.Sprintf("Test the feature '%s'. Code: %s. Design: %s. Description: %s. %s",
		f.Name, code, design, f.Description, MarkerVerify)
}

func approvePrompt(f project.Feature, code, design string) string {
	return fmt.Sprintf("Verify if '%s' meets its requirements: %s. Constraints: %s. Code: %s. Design: %s. %s",
		f.Name, f.Description, joinOr(f.Constraints, "none"), code, design, MarkerApprove)
}
