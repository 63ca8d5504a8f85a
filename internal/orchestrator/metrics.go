package orchestrator

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	// CyclesTotal counts executed cycles across all runs.
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "owera",
			Subsystem: "orchestrator",
			Name:      "cycles_total",
			Help:      "Total number of orchestration cycles executed",
		},
	)

	// TasksTotal counts finished tasks.
	// Labels: kind (design, implement, test, review, fix), status (done, failed)
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "owera",
			Subsystem: "orchestrator",
			Name:      "tasks_total",
			Help:      "Total number of tasks finished by kind and status",
		},
		[]string{"kind", "status"},
	)

	// IssuesTotal counts raised issues.
	IssuesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "owera",
			Subsystem: "orchestrator",
			Name:      "issues_total",
			Help:      "Total number of issues raised",
		},
	)

	// RunsTotal counts finished runs.
	// Labels: outcome (complete, deadlock, ceiling, cancelled)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "owera",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of runs by outcome",
		},
		[]string{"outcome"},
	)

	// TaskDuration tracks task latency including the model call.
	// Labels: role
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "owera",
			Subsystem: "orchestrator",
			Name:      "task_duration_seconds",
			Help:      "Duration of task execution in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"role"},
	)
)

// instruments mirror the Prometheus collectors on an OpenTelemetry meter.
type instruments struct {
	cycles metric.Int64Counter
	tasks  metric.Int64Counter
	issues metric.Int64Counter
	runs   metric.Int64Counter
}

func newInstruments(meter metric.Meter, logger *zap.Logger) *instruments {
	inst := &instruments{}
	var err error

	inst.cycles, err = meter.Int64Counter("owera.orchestrator.cycles",
		metric.WithDescription("Orchestration cycles executed"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		logger.Warn("failed to create cycles counter", zap.Error(err))
	}

	inst.tasks, err = meter.Int64Counter("owera.orchestrator.tasks",
		metric.WithDescription("Tasks finished by kind and status"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		logger.Warn("failed to create tasks counter", zap.Error(err))
	}

	inst.issues, err = meter.Int64Counter("owera.orchestrator.issues",
		metric.WithDescription("Issues raised"),
		metric.WithUnit("{issue}"),
	)
	if err != nil {
		logger.Warn("failed to create issues counter", zap.Error(err))
	}

	inst.runs, err = meter.Int64Counter("owera.orchestrator.runs",
		metric.WithDescription("Runs finished by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		logger.Warn("failed to create runs counter", zap.Error(err))
	}
	return inst
}

func (i *instruments) cycle(ctx context.Context) {
	CyclesTotal.Inc()
	if i.cycles != nil {
		i.cycles.Add(ctx, 1)
	}
}

func (i *instruments) task(ctx context.Context, kind, status string) {
	TasksTotal.WithLabelValues(kind, status).Inc()
	if i.tasks != nil {
		i.tasks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		))
	}
}

func (i *instruments) issue(ctx context.Context) {
	IssuesTotal.Inc()
	if i.issues != nil {
		i.issues.Add(ctx, 1)
	}
}

func (i *instruments) run(ctx context.Context, outcome Outcome) {
	RunsTotal.WithLabelValues(string(outcome)).Inc()
	if i.runs != nil {
		i.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}
