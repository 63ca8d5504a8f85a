// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug) for prompt and response bodies
//   - Stdout, stderr, file and OpenTelemetry outputs
//   - Automatic context field injection (trace_id, run, cycle, feature, task)
//   - Redaction of model API keys and bearer tokens
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRun(ctx, p.RunID())
//	ctx = logging.WithCycle(ctx, 3)
//	logger.Warn(ctx, "scheduler deadlock", zap.Int("open_issues", 1))
//
// Output includes the correlation fields:
//
//	{"ts":"2026-03-02T10:15:30Z","level":"warn","msg":"scheduler deadlock",
//	 "run.id":"3f2a...","cycle":3,"open_issues":1}
//
// # Testing
//
// NewTestLogger records every entry in memory:
//
//	tl := logging.NewTestLogger()
//	loop := orchestrator.New(orchestrator.Options{Logger: tl.Logger, ...})
//	tl.AssertLogged(t, zapcore.WarnLevel, "deadlock")
package logging
