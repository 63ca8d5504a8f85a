// Package orchestrator drives a project through the feature lifecycle.
//
// # Overview
//
// A Loop runs cycles until the project is complete, the scheduler stops
// producing work, or the cycle ceiling is reached:
//
//	schedule → collect todo tasks → dispatch each to its role → checkpoint
//
// Each feature moves design → implement → test → review. A rejection by
// the Verifier or Approver raises an Issue and queues one fix task; issues
// are never resolved and a fixed feature is not re-tested, so such runs end
// in OutcomeDeadlock.
//
// # Outcomes
//
//   - OutcomeComplete: every feature approved, no open task or issue
//   - OutcomeDeadlock: no todo task while incomplete (warning)
//   - OutcomeCeiling: MaxCycles reached while incomplete (warning)
//   - OutcomeCancelled: ctx cancelled between tasks; Run returns ctx.Err()
//
// Deadlock and ceiling are not errors. The caller always hands the final
// snapshot to the scaffold.
//
// # Usage
//
//	loop, err := orchestrator.New(orchestrator.Options{
//	    Logger:    logger,
//	    Client:    client,
//	    MaxCycles: cfg.Orchestrator.MaxCycles,
//	    Progress:  func(p orchestrator.Progress) { ch <- p },
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := loop.Run(ctx, p)
//
// # Concurrency
//
// With Parallelism > 1 the tasks collected in one cycle fan out across
// features; tasks of one feature stay sequential. The todo set is read
// before any dispatch in the cycle.
package orchestrator
