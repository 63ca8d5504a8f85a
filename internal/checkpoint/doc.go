// Package checkpoint persists per-cycle project snapshots.
//
// The loop saves one Checkpoint after every cycle. BadgerStore keeps them
// under run/<runID>/cycle/<cycle> keys; NoOp discards them when
// checkpointing is disabled. `owera status --run <id>` reads the latest.
package checkpoint
