package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallDuration tracks model call latency.
	// Labels: provider, outcome (ok, timeout, error)
	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "owera",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Duration of model calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "outcome"},
	)

	// PromptBytes tracks prompt sizes sent to the model.
	PromptBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "owera",
			Subsystem: "llm",
			Name:      "prompt_bytes",
			Help:      "Size of prompts sent to the model in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
		},
		[]string{"provider"},
	)
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTimeout(err):
		return "timeout"
	default:
		return "error"
	}
}
