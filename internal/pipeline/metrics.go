package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("hoofprint.pipeline")

// Outcome label values for tasksProcessed.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
)

type metrics struct {
	captured       prometheus.Counter
	tasksProcessed *prometheus.CounterVec
	sinkDuration   *prometheus.HistogramVec
	staleRecovered prometheus.Counter
}

// newMetrics registers on reg. A nil reg yields working but unregistered
// collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		captured: f.NewCounter(prometheus.CounterOpts{
			Name: "hoofprint_analyses_captured_total",
			Help: "Analyses stored by capture.",
		}),
		tasksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hoofprint_tasks_processed_total",
			Help: "Processing tasks finished, by sink and outcome.",
		}, []string{"sink", "outcome"}),
		sinkDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hoofprint_sink_duration_seconds",
			Help:    "Duration of a single sink projection.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"sink"}),
		staleRecovered: f.NewCounter(prometheus.CounterOpts{
			Name: "hoofprint_tasks_stale_recovered_total",
			Help: "IN_PROGRESS tasks failed by the stale sweep.",
		}),
	}
}
