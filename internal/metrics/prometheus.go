package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vibecodingbible/edge-guard/pkg/cache"
	"github.com/vibecodingbible/edge-guard/pkg/limiter"
)

const namespace = "edge_guard"

// Prometheus records cache and limiter events on its own registry.
type Prometheus struct {
	registry     *prometheus.Registry
	cacheEvents  *prometheus.CounterVec
	limitEvents  *prometheus.CounterVec
	limitLatency *prometheus.HistogramVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache hits, misses, evictions and expirations.",
		}, []string{"cache", "event"}),
		limitEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "events_total",
			Help:      "Rate limiter calls, denials and backend errors.",
		}, []string{"event", "backend", "namespace"}),
		limitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "latency_seconds",
			Help:      "Rate limiter decision latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"backend", "namespace"}),
	}

	p.registry.MustRegister(
		p.cacheEvents,
		p.limitEvents,
		p.limitLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

// Registry exposes the underlying registry, mostly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Add implements limiter.MetricsRecorder.
func (p *Prometheus) Add(name string, value float64, tags map[string]string) {
	event := strings.TrimPrefix(name, "ratelimit.")
	p.limitEvents.WithLabelValues(event, tags["backend"], tags["namespace"]).Add(value)
}

// Observe implements limiter.MetricsRecorder. Only latency is histogrammed.
func (p *Prometheus) Observe(name string, value float64, tags map[string]string) {
	if name != limiter.MetricLatency {
		return
	}

	p.limitLatency.WithLabelValues(tags["backend"], tags["namespace"]).Observe(value)
}

// Cache returns a cache.Metrics reporting under the given cache name.
func (p *Prometheus) Cache(name string) cache.Metrics {
	return cacheMetrics{
		hit:      p.cacheEvents.WithLabelValues(name, "hit"),
		miss:     p.cacheEvents.WithLabelValues(name, "miss"),
		eviction: p.cacheEvents.WithLabelValues(name, "eviction"),
		expire:   p.cacheEvents.WithLabelValues(name, "expire"),
	}
}

type cacheMetrics struct {
	hit, miss, eviction, expire prometheus.Counter
}

func (m cacheMetrics) Hit()      { m.hit.Inc() }
func (m cacheMetrics) Miss()     { m.miss.Inc() }
func (m cacheMetrics) Eviction() { m.eviction.Inc() }
func (m cacheMetrics) Expire()   { m.expire.Inc() }

var _ limiter.MetricsRecorder = (*Prometheus)(nil)
