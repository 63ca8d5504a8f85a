// Package spec turns an application description into a project.
//
// Free text goes through the Planner first; the model's JSON is validated
// and, if it fails or is invalid, a heuristic parser takes over. Structured
// files (.yaml, .yml, .json, .toml) skip the model entirely.
//
//	parser := spec.NewParser(registry.Planner(), logger)
//	p, err := parser.Parse(ctx, "Build an app called TaskMaster with a login page to authenticate users")
package spec
