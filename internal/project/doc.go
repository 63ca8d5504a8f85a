// Package project holds the shared state a generation run mutates.
//
// Data model:
//
// A Project aggregates:
//   - Features, each carrying four monotonic lifecycle flags
//   - Tasks (append-only, never deleted)
//   - Issues (append-only, never resolved by the engine)
//   - Artifacts per feature (design text, implementation fragments)
//
// Lifecycle:
//
// A feature's stage is derived from its flags:
//
//	Planned -> Designed -> Implemented -> Verified -> Approved
//
// Completion:
//
// A project is complete when every feature is approved, no issue is
// unresolved, and no task is todo or in_progress. Any raised issue makes
// completion unreachable for the rest of the run.
//
// Concurrency:
//
// All methods on Project are safe for concurrent use. Reads return copies;
// callers never hold references into the aggregate.
package project
