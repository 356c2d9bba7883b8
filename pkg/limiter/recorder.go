package limiter

// MetricsRecorder receives store-level instrumentation from RedisStore.
//
// Names used: "ratelimit.call" and "ratelimit.error" (counters) and
// "ratelimit.latency" (seconds). Tags carry the backend under "store".
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder is a placeholder that does nothing.
// It ensures we never have to check 'if r.recorder != nil' in our hot path.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
