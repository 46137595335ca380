package limiter

// MetricsRecorder receives counters and observations from the limiters.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// Metric names emitted by the limiters.
const (
	MetricCall    = "ratelimit.call"
	MetricDenied  = "ratelimit.denied"
	MetricError   = "ratelimit.error"
	MetricLatency = "ratelimit.latency"
)

// NoOpMetricsRecorder is a placeholder that does nothing.
// It ensures we never have to check 'if r.recorder != nil' in our hot path.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}

func backendTags(backend string, ns Namespace) map[string]string {
	return map[string]string{
		"backend":   backend,
		"namespace": string(ns),
	}
}
