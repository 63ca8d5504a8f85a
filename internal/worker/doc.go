// Package worker implements the five lifecycle roles.
//
// Every role follows the same contract:
//
//	prompt := w.BuildPrompt(task, snapshot)   // pure
//	text, err := w.Call(ctx, prompt)          // model call
//	artifact := e.Extract(text, feature)      // Designer and Implementer only
//	effect, err := w.Apply(ctx, artifact, task, p) // the only mutation point
//
// Perform runs the contract for one task and records the outcome on the
// project: done on success, failed plus an Issue on any model or apply
// error. Verifier and Approver rejections are not errors; they raise an
// Issue and a fix task for the Implementer.
//
// Roles form a closed set. Registry.For returns ErrUnknownRole for anything
// outside it.
package worker
