package worker

import "github.com/fyrsmithlabs/owera/internal/llm"

// OfflineRules script a model that approves everything on the first try.
// The planner rule answers with prose so ingestion falls back to the
// heuristic parser. Fix precedes implement because both prompts mention
// a Flask route.
func OfflineRules() []llm.Rule {
	return []llm.Rule{
		{Match: MarkerPlan, Responses: []string{"offline mode: no structured plan"}},
		{Match: MarkerDesign, Responses: []string{"offline mode: no design generated"}},
		{Match: MarkerFix, Responses: []string{"offline mode: no fix generated"}},
		{Match: MarkerImplement, Responses: []string{"offline mode: no code generated"}},
		{Match: MarkerVerify, Responses: []string{"No issues"}},
		{Match: MarkerApprove, Responses: []string{"Approve"}},
	}
}

// NewOfflineClient returns a scripted client over OfflineRules. Designs and
// code come from the extraction placeholders.
func NewOfflineClient() *llm.Scripted {
	return llm.NewScripted(OfflineRules()...)
}
