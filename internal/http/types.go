package http

import (
	"github.com/fyrsmithlabs/owera/internal/services"
	"github.com/fyrsmithlabs/owera/internal/spec"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Runs   int    `json:"runs"`
}

// RunRequest is the request body for POST /api/v1/runs. Spec is free
// text; Document skips ingestion.
type RunRequest struct {
	Spec     string         `json:"spec"`
	Document *spec.Document `json:"document,omitempty"`
}

// RunAccepted is the response body for POST /api/v1/runs.
type RunAccepted struct {
	RunID string `json:"run_id"`
}

// RunResponse is the response body for GET /api/v1/runs/:id. Source is
// "live" for runs of this process and "checkpoint" for runs restored from
// the checkpoint store.
type RunResponse struct {
	services.RunInfo
	Source string `json:"source"`
}

// RunsResponse is the response body for GET /api/v1/runs.
type RunsResponse struct {
	Runs []services.RunInfo `json:"runs"`
}
