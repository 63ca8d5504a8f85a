// Package services wires the run pipeline shared by the CLI, the HTTP API
// and the MCP server.
//
// A Registry holds the long-lived collaborators (worker registry, spec
// parser, checkpoint store, event publisher, GitHub publisher). Execute runs
// one project through the orchestrator and hands the result to the
// scaffold. Runs tracks background executions submitted over HTTP.
package services
