package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreRecorder turns bucket store instrumentation (Add/Observe calls keyed by
// dotted names such as "ratelimit.call") into Prometheus series.
type StoreRecorder struct {
	Events  *prometheus.CounterVec
	Latency *prometheus.HistogramVec
}

func NewStoreRecorder(reg prometheus.Registerer) *StoreRecorder {
	r := &StoreRecorder{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimitd_store_events_total",
				Help: "Bucket store calls and errors",
			},
			[]string{"event", "store"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratelimitd_store_duration_seconds",
				Help:    "Bucket store round-trip duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"op", "store"},
		),
	}

	reg.MustRegister(r.Events, r.Latency)
	return r
}

func (r *StoreRecorder) Add(name string, value float64, tags map[string]string) {
	r.Events.WithLabelValues(label(name), tags["store"]).Add(value)
}

func (r *StoreRecorder) Observe(name string, value float64, tags map[string]string) {
	r.Latency.WithLabelValues(label(name), tags["store"]).Observe(value)
}

// label strips the "ratelimit." namespace: "ratelimit.call" -> "call".
func label(name string) string {
	return strings.TrimPrefix(name, "ratelimit.")
}
